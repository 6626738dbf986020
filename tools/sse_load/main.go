// Command sse_load opens many concurrent connections to the balance SSE stream and reports
// how many snapshot and balance events each second delivers.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

type stats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	snapshots   atomic.Int64
	balances    atomic.Int64
	pings       atomic.Int64
}

// countLine classifies a single SSE line.
func (s *stats) countLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case line == "":
	case strings.HasPrefix(line, ":"):
		s.pings.Add(1)
	case line == "event: snapshot":
		s.snapshots.Add(1)
	case line == "event: balance":
		s.balances.Add(1)
	}
}

func (s *stats) String() string {
	return fmt.Sprintf("connected=%d connect_errs=%d stream_errs=%d snapshots=%d balances=%d pings=%d",
		s.connected.Load(),
		s.connectErrs.Load(),
		s.streamErrs.Load(),
		s.snapshots.Load(),
		s.balances.Load(),
		s.pings.Load(),
	)
}

func main() {
	var (
		targetURL    string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/balance/stream", "SSE endpoint URL")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "ramp-up duration (spread connection starts across this window)")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}

	if rampUp == 0 && connections > 100 {
		// default ramp-up: 1 second per 500 connections
		rampUp = max(time.Duration(connections/500)*time.Second, time.Second)
		log.Printf("no ramp-up specified for high connection count, using %s", rampUp)
	}

	log.Printf("starting SSE load: url=%s conns=%d duration=%s ramp=%s", targetURL, connections, testDuration, rampUp)

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     connections + 100,
			MaxIdleConns:        connections + 100,
			MaxIdleConnsPerHost: connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
		Timeout: 0, // streaming
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	var (
		st       stats
		wg       sync.WaitGroup
		interval time.Duration
	)
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	start := time.Now()
	for i := 0; i < connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				continue
			case <-time.After(interval):
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			stream(ctx, client, targetURL, &st)
		}()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Printf("status: %s elapsed=%s", &st, time.Since(start).Truncate(time.Second))
			}
		}
	}()

	wg.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	perSec := float64(st.balances.Load()) / elapsed.Seconds()
	fmt.Printf("done: %s elapsed=%s balances/s=%.2f\n", &st, elapsed.Truncate(time.Millisecond), perSec)
}

func stream(ctx context.Context, client *http.Client, url string, st *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		st.connectErrs.Add(1)
		return
	}

	st.connected.Add(1)
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				st.streamErrs.Add(1)
			}
			return
		}
		st.countLine(line)
	}
}
