// rudpecho is a small demo of the transport: run one instance as an echo
// server and point any number of clients at it. The client sends numbered
// payloads with a chosen delivery method and prints what comes back,
// optionally through a lossy simulated link.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/irctrakz/rudp/pkg/config"
	"github.com/irctrakz/rudp/pkg/core"
	"github.com/irctrakz/rudp/pkg/logging"
	"github.com/irctrakz/rudp/pkg/transport"
)

func main() {
	listen := flag.String("listen", "", "run as echo server on this address, e.g. 0.0.0.0:34254")
	connect := flag.String("connect", "", "run as client against this server address")
	configPath := flag.String("config", "", "optional config file (yaml or json)")
	method := flag.String("method", "reliable-ordered", "delivery method: unreliable, reliable-unordered, reliable-ordered, reliable-sequenced")
	interval := flag.Duration("interval", 500*time.Millisecond, "client send interval")
	drop := flag.Float64("drop", 0, "simulated drop rate in [0,1)")
	latency := flag.Duration("latency", 0, "simulated one-way latency")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		if err := config.LoadFromFile(*configPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}
	config.LoadFromEnv(cfg)

	dval := strings.ToLower(strings.TrimSpace(os.Getenv("DEBUG")))
	if dval == "1" || dval == "true" || dval == "yes" || dval == "on" {
		cfg.Logging.Level = "debug"
		cfg.Transport.Debug = true
	}

	switch {
	case *listen != "":
		cfg.Transport.ListenAddress = *listen
	case *connect != "":
		cfg.Transport.ListenAddress = "127.0.0.1:0"
	default:
		fmt.Fprintln(os.Stderr, "one of -listen or -connect is required")
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	t := transport.NewTransport(cfg.Protocol, cfg.Transport)
	if *drop > 0 || *latency > 0 {
		t.SetLinkConditioner(transport.NewSimulatedLink(*drop, *latency, *latency/4, time.Now().UnixNano()))
		logging.Infof("link conditioner active: drop=%.2f latency=%v", *drop, *latency)
	}
	if err := t.Start(); err != nil {
		logging.Fatalf("transport: %v", err)
	}
	defer t.Stop()

	go reportMetrics(t)

	if *listen != "" {
		runServer(t)
		return
	}
	runClient(t, *connect, parseMethod(*method), *interval)
}

func parseMethod(name string) core.DeliveryMethod {
	switch name {
	case "unreliable":
		return core.Unreliable
	case "reliable-unordered":
		return core.ReliableUnordered
	case "reliable-ordered":
		return core.ReliableOrdered
	case "reliable-sequenced":
		return core.ReliableSequenced
	default:
		logging.Fatalf("unknown delivery method %q", name)
		return core.Unreliable
	}
}

// runServer echoes every payload back with the delivery method it came with.
func runServer(t *transport.Transport) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-stop:
			return
		case ev := <-t.Events():
			switch e := ev.(type) {
			case core.PacketEvent:
				p := e.Packet
				if err := t.Send(p.Addr(), p.Payload(), p.DeliveryMethod()); err != nil {
					logging.Errorf("echo to %s failed: %v", p.Addr(), err)
				}
			case core.ConnectEvent:
				logging.Infof("peer %s connected", e.Remote)
			case core.TimeoutEvent:
				logging.Infof("peer %s timed out", e.Remote)
			case core.DisconnectEvent:
				logging.Infof("peer %s disconnected", e.Remote)
			}
		}
	}
}

func runClient(t *transport.Transport, server string, method core.DeliveryMethod, interval time.Duration) {
	addr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		logging.Fatalf("invalid server address %q: %v", server, err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-stop:
			t.Close(addr)
			return
		case <-ticker.C:
			seq++
			payload := []byte(fmt.Sprintf("echo %d @ %s", seq, time.Now().Format(time.RFC3339Nano)))
			if err := t.Send(addr, payload, method); err != nil {
				logging.Errorf("send failed: %v", err)
			}
		case ev := <-t.Events():
			switch e := ev.(type) {
			case core.PacketEvent:
				fmt.Printf("<- %s\n", e.Packet.Payload())
			case core.DeliveryFailureEvent:
				logging.Warnf("delivery failure seq=%d after %d retries", e.Sequence, e.Retries)
			case core.TimeoutEvent:
				logging.Warnf("server %s timed out", e.Remote)
				return
			}
		}
	}
}

// reportMetrics periodically logs transport counters when METRICS_INTERVAL
// is set (seconds).
func reportMetrics(t *transport.Transport) {
	raw := strings.TrimSpace(os.Getenv("METRICS_INTERVAL"))
	if raw == "" {
		return
	}
	d, err := time.ParseDuration(raw + "s")
	if err != nil || d <= 0 {
		return
	}
	for range time.Tick(d) {
		m := t.Metrics()
		logging.Infof("metrics: sent=%d recv=%d bytesOut=%d bytesIn=%d drops=%d errs=%d",
			m.DatagramsSent, m.DatagramsReceived, m.BytesSent, m.BytesReceived,
			m.ConditionedDrops, m.Errors)
	}
}
