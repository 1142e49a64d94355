// Command replay streams a captured Half-Life log file to a running daemon
// over UDP, one line per packet, for local development and load testing.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"time"
)

func main() {
	target := flag.String("target", "127.0.0.1:27500", "daemon UDP address")
	file := flag.String("file", "", "log file to replay (one canonical line per row)")
	rate := flag.Int("rate", 100, "lines per second")
	rawPrefix := flag.Bool("wire-prefix", false, "prepend the \\xff\\xff\\xff\\xfflog wire prefix to each line")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "replay: -file is required")
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	conn, err := net.Dial("udp", *target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	interval := time.Second / time.Duration(*rate)
	prefix := []byte("\xff\xff\xff\xfflog ")

	sent := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 16*1024), 16*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		payload := line
		if *rawPrefix {
			payload = append(append([]byte{}, prefix...), line...)
		}
		if _, err := conn.Write(payload); err != nil {
			fmt.Fprintf(os.Stderr, "replay: send: %v\n", err)
			os.Exit(1)
		}
		sent++
		time.Sleep(interval)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "replay: read: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("replayed %d lines to %s\n", sent, *target)
}
