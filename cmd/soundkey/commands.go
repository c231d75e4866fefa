package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/browser"

	"github.com/lixenwraith/soundkey/audio"
	"github.com/lixenwraith/soundkey/constant"
	"github.com/lixenwraith/soundkey/dispatch"
	"github.com/lixenwraith/soundkey/login"
	"github.com/lixenwraith/soundkey/mapping"
	"github.com/lixenwraith/soundkey/monitor"
)

func runEmit(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("emit", flag.ExitOnError)
	payloadHex := fs.String("payload", "", "Hex payload, at least 4 bytes; empty plays the demo sequence")
	gain := fs.Float64("gain", constant.LoginMasterGain, "Master gain 0-1")
	fs.Parse(args)

	payload, err := parseHex(*payloadHex)
	if err != nil {
		return err
	}
	if err := a.start(false); err != nil {
		return err
	}
	opts := audio.DefaultEmitOptions()
	opts.Gain = *gain
	return a.emitter().Emit(ctx, payload, opts)
}

func runProve(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("prove", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: soundkey prove <account>")
	}
	if err := a.start(false); err != nil {
		return err
	}
	return a.prover().Prove(ctx, fs.Arg(0))
}

func runVerify(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: soundkey verify <account>")
	}

	fmt.Printf("Listening for %s...\n", a.cfg.CaptureDuration)
	res, err := a.verifier().Verify(ctx, fs.Arg(0))
	if errors.Is(err, login.ErrMismatch) {
		fmt.Printf("Not verified: %d/%d tones matched (expected %v, heard %v)\n",
			res.Matches, constant.LoginToneCount, res.Expected, res.Detected)
		return err
	}
	if err != nil {
		return err
	}
	if res.Session.Bypass {
		fmt.Println("Verified (sound bypass)")
		return nil
	}
	fmt.Printf("Verified: %d/%d tones matched\n", res.Matches, constant.LoginToneCount)
	return nil
}

func runTone(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("tone", flag.ExitOnError)
	hz := fs.Float64("hz", 1000, "Frequency in Hz")
	dur := fs.Duration("dur", constant.TestToneDuration, "Duration")
	volume := fs.Float64("volume", constant.TestToneVolume, "Volume 0-1")
	fs.Parse(args)

	if err := a.start(false); err != nil {
		return err
	}
	return a.emitter().PlayTone(ctx, *hz, *dur, *volume)
}

func runListen(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	tui := fs.Bool("tui", false, "Show the live terminal monitor")
	fs.Parse(args)

	if err := a.start(false); err != nil {
		return err
	}
	d := a.dispatcher()

	if *tui {
		// The browser helper writes to the terminal the monitor owns
		browser.Stdout, browser.Stderr = io.Discard, io.Discard
		return listenTUI(ctx, a, d)
	}

	d.OnEvent = func(e dispatch.Event) {
		fmt.Printf("%s %-8s %s\n", e.At.Format("15:04:05"), e.Kind, e.Message)
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	select {
	case <-ctx.Done():
	case <-d.Done():
	}
	return nil
}

func listenTUI(ctx context.Context, a *app, d *dispatch.Dispatcher) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-d.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	m := monitor.New(screen, a.metrics, a.ring)
	m.NoiseGate = d.NoiseGate
	if list, err := a.editor.List(); err == nil {
		m.Mappings = list
	}
	return m.Run(ctx)
}

func runMappings(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		return listMappings(a)

	case "add":
		fs, build := mappingFlags("add")
		fs.Parse(args[1:])
		m, err := build()
		if err != nil {
			return err
		}
		added, err := a.editor.Add(m)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s (%.0f Hz)\n", added.ID, added.FrequencyHz)
		return nil

	case "edit":
		fs, build := mappingFlags("edit")
		id := fs.String("id", "", "Mapping id")
		fs.Parse(args[1:])
		m, err := build()
		if err != nil {
			return err
		}
		if _, err := a.editor.Edit(*id, m); err != nil {
			return err
		}
		fmt.Printf("Updated %s\n", *id)
		return nil

	case "delete":
		fs := flag.NewFlagSet("delete", flag.ExitOnError)
		id := fs.String("id", "", "Mapping id")
		fs.Parse(args[1:])
		if err := a.editor.Delete(*id); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", *id)
		return nil

	default:
		return fmt.Errorf("unknown mappings command %q: use list, add, edit or delete", args[0])
	}
}

func listMappings(a *app) error {
	list, err := a.editor.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tHZ\tLABEL\tACTION\tTARGET")
	for _, m := range list {
		target := m.Action.URL
		if m.Action.Type == mapping.ActionPublish {
			target = m.Action.Topic
		}
		fmt.Fprintf(w, "%s\t%.0f\t%s\t%s\t%s\n", m.ID, m.FrequencyHz, m.Label, m.Action.Type, target)
	}
	w.Flush()
	if !a.editor.CanEdit() {
		fmt.Println("\nRead-only: run 'soundkey attest' with the signer connected to edit")
	}
	return nil
}

// mappingFlags registers the mapping fields on a FlagSet; build reads them back
func mappingFlags(name string) (*flag.FlagSet, func() (mapping.Mapping, error)) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	hz := fs.Float64("hz", 0, "Trigger frequency in Hz")
	label := fs.String("label", "", "Display label")
	url := fs.String("url", "", "URL to open")
	topic := fs.String("topic", "", "MQTT topic to publish to")
	payload := fs.String("payload", "", "MQTT payload, defaults to the label")
	noop := fs.Bool("noop", false, "Detect only, no action")

	return fs, func() (mapping.Mapping, error) {
		return buildMapping(*hz, *label, *url, *topic, *payload, *noop)
	}
}

func buildMapping(hz float64, label, url, topic, payload string, noop bool) (mapping.Mapping, error) {
	m := mapping.Mapping{FrequencyHz: hz, Label: label}
	switch {
	case noop:
		m.Action = mapping.Action{Type: mapping.ActionNoop}
	case topic != "":
		m.Action = mapping.Publish(topic, payload)
	case url != "":
		m.Action = mapping.OpenURL(url)
	default:
		return m, errors.New("one of -url, -topic or -noop is required")
	}
	return m, m.Validate()
}

func runAttest(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("attest", flag.ExitOnError)
	clearFlag := fs.Bool("clear", false, "Forget the current attestation")
	fs.Parse(args)

	if *clearFlag {
		a.attest.Clear()
		fmt.Println("Attestation cleared")
		return nil
	}

	att, err := a.attest.Ensure(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Attested %s until %s\n", a.attest.AttestedPrincipalID(), time.UnixMilli(att.ExpiresAt).Format(time.RFC3339))
	return nil
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", a.cfg.HTTPAddr, "Listen address")
	fs.Parse(args)
	a.cfg.HTTPAddr = *addr

	if err := a.start(true); err != nil {
		return err
	}
	fmt.Printf("Serving on %s\n", a.cfg.HTTPAddr)
	<-ctx.Done()
	return nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return b, nil
}
