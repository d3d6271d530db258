package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "flysim.yml"
	k              = koanf.New(".")
)

func setupconfig() {
	fk := koanf.New(".")
	if err := fk.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	k.Load(structs.Provider(DefaultConfig(), "koanf"), nil)
	if err := k.Merge(fk); err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	// only the scalars, FLYSIM_ADDR=:9000
	err := k.Load(env.Provider("FLYSIM_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "FLYSIM_"))
		for _, key := range []string{"Addr", "Endpoint", "Speedup", "Log"} {
			if strings.ToLower(key) == s {
				return key
			}
		}
		return s
	}), nil)
	if err != nil {
		log.Fatalf("error loading environment: %v", err)
	}
}

func root() {
	str := `flysim serves simulated motion axes and a model detector over HTTP, for
exercising flyopt in hardware mode without hardware

Usage:
	flysim <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `flysim is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

Each axis has a Name, a Start position and Travel and Velocity limits.  Moves
outside the travel limits are refused with a 400.  The intensity is a
Gaussian of the weighted sum of the positions, one weight per axis in
configured order.

Routes, under Endpoint:
	/axis/{axis}/pos, velocity, inposition, limits
	/intensity
	/intensity/run`
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
	fmt.Printf("flysim version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	s, err := NewStage(c)
	if err != nil {
		log.Fatal(err)
	}
	mux := BuildMux(c, s)
	log.Println("now listening for requests at ", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
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
