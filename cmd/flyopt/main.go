package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/theckman/yacspin"

	"github.jpl.nasa.gov/bdube/flyopt/de"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "flyopt.yml"

	// EnvPrefix prefixes environment variables overriding the config file,
	// e.g. FLYOPT_DE_SEED=3
	EnvPrefix = "FLYOPT_"

	k = koanf.New(".")
)

// envKey maps FLYOPT_DE_SEED to the config key DE.Seed
func envKey(known []string) func(string) string {
	lower := make(map[string]string, len(known))
	for _, key := range known {
		lower[strings.ToLower(key)] = key
	}
	return func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		s = strings.ReplaceAll(s, "_", ".")
		if key, ok := lower[s]; ok {
			return key
		}
		return s
	}
}

func setupconfig() {
	fk := koanf.New(".")
	if err := fk.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	// maps merge key by key, so the default axes would survive a file
	// naming others
	def := DefaultConfig()
	if fk.Exists("Bounds") {
		def.Bounds = nil
		def.Start = nil
	}
	k.Load(structs.Provider(def, "koanf"), nil)
	if err := k.Merge(fk); err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey(k.Keys())), nil); err != nil {
		log.Fatalf("error loading environment: %v", err)
	}
}

func root() {
	str := `flyopt aligns motion axes by differential evolution, evaluating each
candidate with a fly scan and keeping the brightest point of each trajectory

Usage:
	flyopt <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `flyopt is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Any key can be overridden from the environment, e.g. FLYOPT_DE_SEED=3 or
FLYOPT_MODE=hardware.

Mode "simulated" evaluates a Gaussian model of the axis positions and needs
Start, Intermediate and Gaussian.  Mode "hardware" flies the axes of the
server at Server (see flysim) and reads the intensity at Detector.

Bounds limit the search per axis and must lie inside the travel limits of
the axes.  Caps.Max must be set if any axis has no upper velocity limit.

Recorder.Kind is one of
- memory, episodes are lost at exit
- fits, one binary table per episode under Root/yyyy-mm-dd/
- sqlite, every episode in the database at Path

Metrics are served at MetricsAddr/metrics when MetricsAddr is set.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("flyopt version %v\n", Version)
}

// spinWriter shows each log line as the spinner message
type spinWriter struct {
	s *yacspin.Spinner
}

func (w spinWriter) Write(p []byte) (int, error) {
	w.s.Message(strings.TrimSpace(string(p)))
	return len(p), nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Println("serving metrics at ", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Println("metrics server stopped: ", err)
	}
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " flyopt",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopFailCharacter: "✗",
	})
	if err != nil {
		log.Fatal(err)
	}
	logger := log.New(spinWriter{spinner}, "", 0)

	r, err := Build(ctx, c, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()
	if c.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		r.Optimizer.Metrics = de.NewMetrics(reg)
		go serveMetrics(c.MetricsAddr, reg)
	}

	spinner.Start()
	res, err := r.Optimizer.Optimize(ctx)
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		r.Close()
		log.Fatal(err)
	}
	spinner.StopMessage(fmt.Sprintf("%d generations", res.Generations))
	spinner.Stop()
	fmt.Printf("best fitness %.6f after %d generations (%d immigrations)\n",
		res.BestFitness, res.Generations, res.Immigrations)
	for _, key := range res.Best.Layout() {
		v, _ := res.Best.Get(key)
		fmt.Printf("\t%s = %g\n", key, v)
	}
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
