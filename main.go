package main

import (
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/sequtils/refserve/fasta"
)

var (
	refserveVersion string

	bind       = kingpin.Flag("bind", "Address to bind to. Overrides the config option of the same name.").Short('b').PlaceHolder("ADDRESS").String()
	reference  = kingpin.Flag("reference", "The FASTA/FASTQ file to serve. Overrides the config option of the same name.").Short('r').PlaceHolder("PATH").String()
	configPath = kingpin.Flag("config", "The config file to use. By default, either refserve.conf in the local directory or /etc/refserve.conf will be used.").PlaceHolder("PATH").String()
	pprofBind  = kingpin.Flag("pprof", "Address to bind to for pprof, which provides profiling information over HTTP.").PlaceHolder("ADDRESS").String()

	indexOnly     = kingpin.Flag("index-only", "Build or refresh the index, then exit.").Bool()
	extract       = kingpin.Flag("extract", "Print the named sequence to stdout, then exit. Bare names are resolved by unique prefix.").PlaceHolder("NAME").String()
	extractStart  = kingpin.Flag("start", "With --extract, the 0-based base position to start from.").Default("-1").Int()
	extractLength = kingpin.Flag("length", "With --extract, the number of bases to print.").Default("-1").Int()
)

func main() {
	kingpin.Version("refserve version " + refserveVersion)
	kingpin.Parse()

	if *pprofBind != "" {
		go func() {
			log.Println("Starting pprof server at", *pprofBind)
			log.Println(http.ListenAndServe(*pprofBind, nil))
		}()
	}

	config, err := loadConfig(*configPath)
	if err == errNoConfig {
		// If --reference was specified, we can just use that and the
		// default config.
		if *reference != "" {
			config = defaultConfig()
		} else {
			log.Fatal("No config file found! Please see the README for instructions.")
		}
	} else if err != nil {
		log.Fatal("Error loading config:", err)
	}

	if *reference != "" {
		config.Reference = *reference
	}

	if *bind != "" {
		config.Bind = *bind
	}

	config, err = validateConfig(config)
	if err != nil {
		log.Fatal("Invalid config:", err)
	}

	if *indexOnly {
		buildIndexOnly(config)
		return
	}

	if *extract != "" {
		extractSequence(config, *extract, *extractStart, *extractLength)
		return
	}

	if config.Debug.Bind != "" {
		startDebugServer(config)
	}

	s := newRefserve(config)
	err = s.init()
	if err != nil {
		log.Fatal(err)
	}

	s.start()
}

func buildIndexOnly(config refserveConfig) {
	ref, err := openReference(config.Reference)
	if err != nil {
		log.Fatal(err)
	}
	defer ref.Close()

	log.Printf("Indexed %d sequences from %s", len(ref.Index), config.Reference)
}

func extractSequence(config refserveConfig, name string, start, length int) {
	ref, err := openReference(config.Reference)
	if err != nil {
		log.Fatal(err)
	}
	defer ref.Close()

	if _, err := ref.Entry(name); err == fasta.ErrNotFound {
		resolved, err := ref.SequenceNameStartingWith(name)
		if err != nil {
			log.Fatal(err)
		} else if resolved == "" {
			log.Fatalf("No sequence named %q in %s", name, config.Reference)
		}
		name = resolved
	}

	var seq string
	if start >= 0 || length >= 0 {
		seq, err = ref.SubSequence(name, start, length)
	} else {
		seq, err = ref.Sequence(name)
	}

	if err != nil {
		log.Fatal(err)
	}

	fmt.Fprintln(os.Stdout, seq)
}
