package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/agenthands/teenyjvm/pkg/classfile"
	"github.com/agenthands/teenyjvm/pkg/config"
	"github.com/agenthands/teenyjvm/pkg/heap"
	"github.com/agenthands/teenyjvm/pkg/interp"
	"github.com/go-logr/stdr"
)

const usage = "Usage: teenyjvm [-gas limit] [-trace] <file.class>"

func main() {
	fs := flag.NewFlagSet("teenyjvm", flag.ExitOnError)
	gasLimit := fs.Int("gas", 0, "maximum instructions to dispatch (0 = unbounded)")
	trace := fs.Bool("trace", false, "log every dispatched instruction")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	classPath := fs.Arg(0)

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "teenyjvm: %v\n", err)
		os.Exit(1)
	}
	if *gasLimit == 0 {
		*gasLimit = cfg.VM.GasLimit
	}
	if !*trace {
		*trace = cfg.VM.Trace
	}
	if cfg.VM.Classpath != "" && !filepath.IsAbs(classPath) {
		classPath = filepath.Join(cfg.VM.Classpath, classPath)
	}

	stdLog := log.New(os.Stderr, "", log.LstdFlags)
	logger := stdr.New(stdLog)
	if *trace {
		stdr.SetVerbosity(2)
	}

	f, err := os.Open(classPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "teenyjvm: opening %s: %v\n", classPath, err)
		os.Exit(1)
	}
	defer f.Close()

	class, err := classfile.Parse(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "teenyjvm: parsing %s: %v\n", classPath, err)
		os.Exit(1)
	}
	defer class.Close()

	main, ok := class.FindMethod("main", "([Ljava/lang/String;)V")
	if !ok {
		fmt.Fprintf(os.Stderr, "teenyjvm: %s: no main([Ljava/lang/String;)V method\n", classPath)
		os.Exit(1)
	}

	h := heap.New(logger)
	engine := interp.New(class, h)
	engine.Log = logger
	engine.GasLimit = *gasLimit

	_, hasValue, err := engine.Execute(main, make([]int32, main.MaxLocals))
	if err != nil {
		fmt.Fprintf(os.Stderr, "teenyjvm: %v\n", err)
		os.Exit(2)
	}
	if hasValue {
		fmt.Fprintln(os.Stderr, "teenyjvm: main returned a value; main must be void")
		os.Exit(2)
	}
}
