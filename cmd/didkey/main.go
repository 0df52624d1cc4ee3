package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"xdao.co/didkey/config"
	"xdao.co/didkey/did"
	"xdao.co/didkey/logger"
	"xdao.co/didkey/wallet"
	_ "xdao.co/didkey/wallet/localfs"
	_ "xdao.co/didkey/wallet/sqlstore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "create":
		return cmdCreate(args[1:], out, errOut)
	case "resolve":
		return cmdResolve(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "didkey: did:key identifiers backed by a local wallet")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  didkey create [--config <file.yaml>] [--format json|yaml] [--metrics-out <file>]")
	fmt.Fprintln(w, "  didkey resolve --did <did> [--kid <kid>] [--rel <relationship> ...] [--publish <relationship> ...] [--format json|yaml]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  WALLET_ID, WALLET_KEY, LOG_LEVEL (or CREDO_LOG_LEVEL), STORE_BACKEND, STORE_PATH, KEY_SCHEME, DID_RELATIONSHIPS")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintf(w, "  - store backends: %s\n", strings.Join(wallet.Names(), ", "))
	fmt.Fprintln(w, "  - create provisions the store if needed; an existing store is reused")
	fmt.Fprintln(w, "  - logs go to stderr; results go to stdout")
	fmt.Fprintln(w, "  - resolve expands did:key identifiers offline")
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type createResult struct {
	DID      did.DID       `json:"did" yaml:"did"`
	KID      did.KeyID     `json:"kid" yaml:"kid"`
	CID      string        `json:"cid" yaml:"cid"`
	Document *did.Document `json:"document" yaml:"document"`
}

func cmdCreate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var configPath, format, metricsOut string
	fs.StringVar(&configPath, "config", "", "YAML config file (environment overrides it)")
	fs.StringVar(&format, "format", "json", "Output format: json|yaml")
	fs.StringVar(&metricsOut, "metrics-out", "", "Write Prometheus text metrics to this file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 || !validFormat(format) {
		fmt.Fprintln(errOut, "usage: didkey create [--config <file.yaml>] [--format json|yaml] [--metrics-out <file>]")
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	log := logger.New(cfg.Level(), errOut)
	defer log.Sync()

	backend, err := wallet.Lookup(cfg.StoreBackend)
	if err != nil {
		log.Error("Unknown store backend", logger.Fields{"backend": cfg.StoreBackend, "available": wallet.Names()})
		return 1
	}
	reg := prometheus.NewRegistry()
	metrics, err := wallet.NewMetrics(reg)
	if err != nil {
		log.Error("Failed to register metrics", logger.Fields{"error": err.Error()})
		return 1
	}
	if metricsOut != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(metricsOut, reg); err != nil {
				log.Warn("Failed to write metrics", logger.Fields{"path": metricsOut, "error": err.Error()})
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := wallet.NewManager(backend, wallet.ManagerOptions{Name: cfg.StoreBackend, Logger: log, Metrics: metrics})
	h, err := m.Provision(ctx, cfg.Wallet())
	if err != nil {
		log.Error("Failed to provision wallet", logger.Fields{"error": err.Error()})
		return 1
	}
	rt, err := m.Initialize(ctx, h)
	if err != nil {
		log.Error("Failed to initialize wallet", logger.Fields{"error": err.Error()})
		return 1
	}
	defer func() {
		if err := rt.Shutdown(); err != nil {
			log.Warn("Failed to shut down wallet", logger.Fields{"error": err.Error()})
		}
	}()

	doc, id, err := rt.CreateDID(ctx, cfg.DIDOptions())
	if err != nil {
		log.Error("Failed to create DID", logger.Fields{"error": err.Error()})
		return 1
	}
	kid := did.SelfKeyID(doc.ID())
	if _, err := doc.DereferenceKey(kid, doc.RelationshipNames()...); err != nil {
		log.Error("Created DID does not dereference its own key", logger.Fields{"kid": kid.String(), "error": err.Error()})
		return 1
	}
	log.Info("Created DID", logger.Fields{"did": doc.ID().String(), "kid": kid.String()})

	if err := render(out, format, createResult{DID: doc.ID(), KID: kid, CID: id.String(), Document: doc}); err != nil {
		log.Error("Failed to write output", logger.Fields{"error": err.Error()})
		return 1
	}
	return 0
}

func cmdResolve(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var id, kid, format string
	var rels, publish stringList
	fs.StringVar(&id, "did", "", "did:key identifier to expand")
	fs.StringVar(&kid, "kid", "", "Key id to dereference (optional)")
	fs.Var(&rels, "rel", "Relationship the key must appear under (repeatable; none means any)")
	fs.Var(&publish, "publish", "Relationship to publish the key under when expanding (repeatable; default authentication)")
	fs.StringVar(&format, "format", "json", "Output format: json|yaml")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if id == "" || fs.NArg() != 0 || !validFormat(format) {
		fmt.Fprintln(errOut, "usage: didkey resolve --did <did> [--kid <kid>] [--rel <relationship> ...] [--publish <relationship> ...] [--format json|yaml]")
		return 2
	}
	scope, err := parseRelationships(rels)
	if err != nil {
		fmt.Fprintf(errOut, "--rel: %v\n", err)
		return 2
	}
	published, err := parseRelationships(publish)
	if err != nil {
		fmt.Fprintf(errOut, "--publish: %v\n", err)
		return 2
	}

	doc, err := did.ResolveDID(did.DID(id), published...)
	if err != nil {
		fmt.Fprintf(errOut, "resolve: %v\n", err)
		return 1
	}
	if kid == "" {
		if err := render(out, format, doc); err != nil {
			fmt.Fprintf(errOut, "write output: %v\n", err)
			return 1
		}
		return 0
	}
	vm, err := did.Resolve(doc, did.KeyID(kid), scope...)
	if err != nil {
		fmt.Fprintf(errOut, "dereference: %v\n", err)
		return 1
	}
	if err := render(out, format, vm); err != nil {
		fmt.Fprintf(errOut, "write output: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func parseRelationships(names []string) ([]did.Relationship, error) {
	out := make([]did.Relationship, 0, len(names))
	for _, n := range names {
		r, err := did.ParseRelationship(n)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func validFormat(f string) bool { return f == "json" || f == "yaml" }

func render(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
