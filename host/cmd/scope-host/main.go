package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"wavescope/core"
	"wavescope/host/capture"
	"wavescope/host/config"
	"wavescope/host/scope"
)

var (
	configPath = flag.String("config", "", "YAML config file")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *verbose {
		cfg.Verbose = true
	}

	fmt.Println("Wavescope Host - waveform telemetry viewer")
	fmt.Println("==========================================")

	fmt.Printf("Connecting to %s...\n", cfg.Serial.Device)
	client, err := scope.Connect(cfg.SerialPort())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	client.Timeout = cfg.Timeout
	if cfg.Verbose {
		client.Log = os.Stdout
	}

	if err := client.RetrieveDictionary(cfg.Dictionary.ChunkSize); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	client.PrintDictionary(os.Stdout)

	if cfg.FrequencyHz != 0 {
		if err := client.SetFrequency(cfg.FrequencyHz); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		var err error
		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "dict":
			client.PrintDictionary(os.Stdout)

		case "raw":
			raw := client.GetDictionaryRaw()
			fmt.Printf("Raw dictionary data (%d bytes):\n%s\n", len(raw), string(raw))

		case "read", "r":
			err = readSignals(client)

		case "freq", "f":
			err = setFrequency(client, parts[1:])

		case "watch", "w":
			err = watch(client, cfg, parts[1:])

		case "capture":
			err = captureCSV(client, cfg, parts[1:])

		case "uptime":
			var n uint32
			if n, err = client.Uptime(); err == nil {
				fmt.Printf("Samples since reset: %d\n", n)
			}

		case "overruns":
			var n uint32
			if n, err = client.Overruns(); err == nil {
				fmt.Printf("Interrupt overruns: %d\n", n)
			}

		case "reset":
			if err = client.ResetSignals(); err == nil {
				fmt.Println("Signals reset")
			}

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help             - Show this help message")
	fmt.Println("  dict             - Print dictionary summary")
	fmt.Println("  raw              - Print raw dictionary JSON")
	fmt.Println("  read             - Read every signal once")
	fmt.Println("  freq <hz>        - Set the requested waveform frequency")
	fmt.Println("  watch [n] [every] - Stream n samples, one every N interrupts")
	fmt.Println("  capture [n] [file] - Stream n samples into a CSV file")
	fmt.Println("  uptime           - Interrupts serviced since reset")
	fmt.Println("  overruns         - Interrupts that fired while still running")
	fmt.Println("  reset            - Reset the signal block")
	fmt.Println("  quit/exit/q      - Exit the program")
	fmt.Println()
}

func readSignals(client *scope.Client) error {
	sig, err := client.ReadSignals()
	if err != nil {
		return err
	}
	printSignals(os.Stdout, &sig)
	return nil
}

func printSignals(w io.Writer, sig *core.Signals) {
	floats := sig.Floats()
	counters := sig.Counters()
	for i, name := range core.SignalNames {
		if i < core.FloatSignalCount {
			fmt.Fprintf(w, "  %-24s %12.6f\n", name, floats[i])
		} else {
			fmt.Fprintf(w, "  %-24s %12d\n", name, counters[i-core.FloatSignalCount])
		}
	}
}

func setFrequency(client *scope.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: freq <hz>")
	}
	hz, err := strconv.ParseFloat(args[0], 32)
	if err != nil {
		return fmt.Errorf("bad frequency %q: %w", args[0], err)
	}
	if err := client.SetFrequency(float32(hz)); err != nil {
		return err
	}
	fmt.Printf("Requested %.3f Hz\n", hz)
	return nil
}

// streamArgs parses "[n] [every]" over the config defaults
func streamArgs(cfg *config.Config, args []string) (int, uint32, error) {
	n, every := cfg.Stream.Samples, cfg.Stream.Every
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return 0, 0, fmt.Errorf("bad sample count %q", args[0])
		}
		n = v
	}
	if len(args) > 1 {
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil || v == 0 {
			return 0, 0, fmt.Errorf("bad decimation %q", args[1])
		}
		every = uint32(v)
	}
	return n, every, nil
}

func watch(client *scope.Client, cfg *config.Config, args []string) error {
	n, every, err := streamArgs(cfg, args)
	if err != nil {
		return err
	}
	if err := client.Stream(true, every); err != nil {
		return err
	}
	defer client.Stream(false, 1)

	fmt.Printf("%10s %10s %10s %10s %10s %8s\n", "sample", "phase", "sine", "cosine", "atan2", "load%")
	for i := 0; i < n; i++ {
		sig, err := client.NextSample()
		if err != nil {
			return err
		}
		fmt.Printf("%10d %10.4f %10.4f %10.4f %10.4f %8.2f\n",
			sig.SampleCounter, sig.PhaseAngleRad, sig.SineValue, sig.CosineValue,
			sig.ArctangentRad, sig.CPULoadPercent)
	}
	return nil
}

func captureCSV(client *scope.Client, cfg *config.Config, args []string) error {
	path := cfg.Stream.CSVPath
	if len(args) > 1 {
		path = args[1]
		args = args[:1]
	}
	n, every, err := streamArgs(cfg, args)
	if err != nil {
		return err
	}

	w, err := capture.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()

	// Rows are written from the reader goroutine as samples arrive
	done := make(chan struct{})
	var once sync.Once
	err = client.OnSample(func(sig core.Signals) {
		if w.Rows() >= uint64(n) {
			return
		}
		if w.WriteSample(&sig) != nil || w.Rows() >= uint64(n) {
			once.Do(func() { close(done) })
		}
	})
	if err != nil {
		return err
	}
	defer client.OnSample(nil)

	if err := client.Stream(true, every); err != nil {
		return err
	}
	defer client.Stream(false, 1)

	var last uint64
	for {
		select {
		case <-done:
			fmt.Printf("Wrote %d samples to %s\n", w.Rows(), path)
			return nil
		case <-time.After(cfg.Timeout):
			rows := w.Rows()
			if rows == last {
				return fmt.Errorf("stream stalled after %d samples", rows)
			}
			last = rows
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}
}
