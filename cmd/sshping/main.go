package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sshping/sshping/internal/config"
	"github.com/sshping/sshping/internal/control"
	"github.com/sshping/sshping/internal/history"
	"github.com/sshping/sshping/internal/netdiag"
	"github.com/sshping/sshping/internal/probe"
	"github.com/sshping/sshping/internal/transport"
	"github.com/sshping/sshping/internal/util"
	"github.com/sshping/sshping/internal/version"
)

func main() {
	tests := flag.String("tests", "both", "Tests to run: echo, speed or both")
	charCount := flag.Int("char-count", config.DefaultCharCount, "Number of characters to echo")
	echoCmd := flag.String("echo-cmd", config.DefaultEchoCommand, "Remote command to echo characters back")
	echoTimeout := flag.Duration("echo-timeout", 0, "Give up on a character after this long (0 = no limit)")
	identity := flag.String("identity", "", "Private key file for authentication")
	password := flag.String("password", "", "Password (or key passphrase) for authentication")
	sshTimeout := flag.Duration("ssh-timeout", config.DefaultSSHTimeout, "SSH connect timeout")
	sshConfigPath := flag.String("ssh-config", "~/.ssh/config", "ssh_config file for host resolution (empty disables)")
	sizeInput := flag.String("size", "8m", "Bytes to transfer in the speed test (e.g. 8m, 500k)")
	chunkInput := flag.String("chunk", "1m", "Transfer chunk size")
	remoteFile := flag.String("remote", config.DefaultRemoteFile, "Remote scratch file ({id} expands to the run id)")
	human := flag.Bool("human", false, "Human-readable units")
	delimiter := flag.String("delimit", "", "Thousands delimiter for raw numbers (e.g. ,)")
	jsonOut := flag.Bool("json", false, "Emit the report as JSON")
	keyWait := flag.Bool("key-wait", false, "Wait for a keypress before exiting")
	verbosity := flag.Int("v", 0, "Verbosity (0 = errors only, 3 = debug)")
	profilePath := flag.String("profile", "", "yaml profile with option defaults")
	preflight := flag.Bool("preflight", false, "Measure an ICMP baseline and report the egress route first")
	geoipDB := flag.String("geoip-db", "", "MaxMind database for target annotation")
	historyDB := flag.String("history", "", "SQLite database to archive runs in")
	recent := flag.Int("recent", 0, "Print the last N archived runs and exit (requires -history)")
	listenAddr := flag.String("listen", "", "Serve live progress on this address (e.g. 127.0.0.1:8035)")
	noProgress := flag.Bool("no-progress", false, "Disable the progress line")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("sshping", version.Version)
		return
	}

	logger := util.NewLogger(*verbosity)

	if *recent > 0 {
		if *historyDB == "" {
			fatal("-recent requires -history")
		}
		if err := printRecent(*historyDB, flag.Arg(0), *recent, util.NewFormatter(*human, *delimiter)); err != nil {
			fatal(err.Error())
		}
		return
	}

	rawTarget := flag.Arg(0)
	if rawTarget == "" {
		fmt.Fprintln(os.Stderr, "usage: sshping [flags] [user@]host[:port]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	target, err := config.ParseTarget(rawTarget)
	if err != nil {
		fatal(err.Error())
	}

	selection, err := probe.ParseSelection(*tests)
	if err != nil {
		fatal(err.Error())
	}
	payloadSize, err := config.ParseSize(*sizeInput)
	if err != nil {
		fatal("invalid -size: " + err.Error())
	}
	chunkSize, err := config.ParseSize(*chunkInput)
	if err != nil {
		fatal("invalid -chunk: " + err.Error())
	}

	opts := config.Options{
		Target:        target,
		SSHConfig:     *sshConfigPath,
		Identity:      *identity,
		Password:      *password,
		SSHTimeout:    *sshTimeout,
		Tests:         selection,
		CharCount:     *charCount,
		EchoCommand:   *echoCmd,
		EchoTimeout:   *echoTimeout,
		PayloadSize:   payloadSize,
		ChunkSize:     chunkSize,
		RemoteFile:    *remoteFile,
		HumanReadable: *human,
		Delimiter:     *delimiter,
		JSONOutput:    *jsonOut,
		KeyWait:       *keyWait,
		Verbosity:     *verbosity,
		Preflight:     *preflight,
		GeoIPDB:       *geoipDB,
		HistoryDB:     *historyDB,
		ListenAddr:    *listenAddr,
	}

	if *profilePath != "" {
		profile, err := config.LoadProfile(*profilePath)
		if err != nil {
			fatal(err.Error())
		}
		if err := profile.Apply(&opts); err != nil {
			fatal(err.Error())
		}
		// Explicit flags override profile values.
		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if set["tests"] {
			opts.Tests = selection
		}
		if set["char-count"] {
			opts.CharCount = *charCount
		}
		if set["echo-cmd"] {
			opts.EchoCommand = *echoCmd
		}
		if set["echo-timeout"] {
			opts.EchoTimeout = *echoTimeout
		}
		if set["size"] {
			opts.PayloadSize = payloadSize
		}
		if set["chunk"] {
			opts.ChunkSize = chunkSize
		}
		if set["remote"] {
			opts.RemoteFile = *remoteFile
		}
		if set["ssh-timeout"] {
			opts.SSHTimeout = *sshTimeout
		}
		if set["identity"] {
			opts.Identity = *identity
		}
		if set["history"] {
			opts.HistoryDB = *historyDB
		}
		if set["geoip-db"] {
			opts.GeoIPDB = *geoipDB
		}
		if set["listen"] {
			opts.ListenAddr = *listenAddr
		}
	}

	if opts.SSHConfig != "" {
		explicitUser := strings.Contains(rawTarget, "@")
		explicitPort := strings.Contains(hostPart(rawTarget), ":")
		if err := config.ResolveSSHConfig(&opts, explicitUser, explicitPort); err != nil {
			logger.Warn("ssh config resolution failed", "error", err)
		}
	}

	if err := opts.Validate(); err != nil {
		fatal(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger, *noProgress); err != nil {
		if ctx.Err() != nil {
			fatal("interrupted")
		}
		fatal(err.Error())
	}
}

func run(ctx context.Context, opts config.Options, logger util.Logger, noProgress bool) error {
	runID := uuid.NewString()
	form := util.NewFormatter(opts.HumanReadable, opts.Delimiter)

	if opts.Preflight || opts.GeoIPDB != "" {
		annotateTarget(ctx, opts, logger, form)
	}

	serverDone := make(chan struct{})
	defer close(serverDone)
	srvCtx, cancelSrv := context.WithCancel(ctx)
	defer cancelSrv()
	var statusSrv *control.Server
	g, gctx := errgroup.WithContext(srvCtx)
	if opts.ListenAddr != "" {
		hub := control.NewHub(serverDone)
		statusSrv = control.NewServer(opts.ListenAddr, runID, hub, logger)
		g.Go(func() error { return statusSrv.Run(gctx) })
	}

	// A progress line would corrupt machine-readable output.
	noProgress = noProgress || opts.JSONOutput
	progress := buildProgress(noProgress, statusSrv)

	dialer := transport.NewSSHDialer(opts, logger)
	runner := probe.NewRunner(dialer, opts.ProbeConfig(runID), logger, progress)

	report, err := runner.Run(gctx)
	if !noProgress {
		fmt.Println()
	}
	if err != nil {
		return err
	}

	if statusSrv != nil {
		statusSrv.Publish(report)
	}

	renderReport(os.Stdout, report, form, opts.JSONOutput)

	if opts.HistoryDB != "" {
		if err := archiveRun(opts.HistoryDB, report); err != nil {
			logger.Warn("could not archive run", "error", err)
		}
	}

	if opts.KeyWait {
		fmt.Print("Press Enter to exit...")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	}

	if statusSrv != nil {
		// Give attached observers a moment to drain the final report.
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
		}
	}
	cancelSrv()
	if err := g.Wait(); err != nil {
		logger.Warn("status server error", "error", err)
	}
	return nil
}

// annotateTarget prints pre-run context: resolved address, ICMP baseline,
// egress route and GeoIP location. All of it is best effort.
func annotateTarget(ctx context.Context, opts config.Options, logger util.Logger, form *util.Formatter) {
	ipAddr, err := net.ResolveIPAddr("ip", opts.Target.Host)
	if err != nil {
		logger.Warn("could not resolve target for preflight", "host", opts.Target.Host, "error", err)
		return
	}
	fmt.Printf("Target-Address:  %s\n", ipAddr.IP)

	if opts.Preflight {
		if res, err := netdiag.Ping(ctx, ipAddr.IP, netdiag.PingConfig{}, logger); err != nil {
			logger.Warn("icmp baseline unavailable", "error", err)
		} else if res.Latency != nil {
			fmt.Printf("ICMP-RTT:        %s (median of %d/%d)\n",
				form.Duration(res.Latency.Median), res.Received, res.Sent)
		} else {
			fmt.Printf("ICMP-RTT:        no replies (%d sent)\n", res.Sent)
		}

		if route, err := netdiag.EgressRoute(ipAddr.IP); err != nil {
			logger.Debug("route lookup unavailable", "error", err)
		} else {
			fmt.Printf("Egress-Route:    %s\n", route)
		}
	}

	if opts.GeoIPDB != "" {
		if loc, err := netdiag.Lookup(opts.GeoIPDB, ipAddr.IP); err != nil {
			logger.Warn("geoip lookup failed", "error", err)
		} else {
			fmt.Printf("Target-Location: %s\n", loc)
		}
	}
}

func archiveRun(dbPath string, report *probe.Report) error {
	store, err := history.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Insert(report)
}

// hostPart strips a leading user@ so a colon check sees only host:port.
func hostPart(raw string) string {
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}
