package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP event server address")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	only := flag.String("type", "", "only print events of this type (e.g. terms.appended)")
	flag.Parse()

	for {
		if err := run(*addr, *pretty, *only); err != nil {
			log.Printf("[sync-client] disconnected: %v", err)
		}
		time.Sleep(time.Second)
	}
}

func run(addr string, pretty bool, only string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[sync-client] connected to %s", addr)

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024) // an appended-terms event can list many terms
	for sc.Scan() {
		line := sc.Bytes()

		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			fmt.Println(string(line))
			continue
		}
		if only != "" && obj["type"] != only {
			continue
		}
		if !pretty {
			fmt.Println(string(line))
			continue
		}

		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Println(string(b))
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}
