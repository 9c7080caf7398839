package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/csim/cache"
	"github.com/sarchlab/csim/recording"
	"github.com/sarchlab/csim/reference"
	"github.com/sarchlab/csim/sim"
	"github.com/sarchlab/csim/trace"
)

// autoRecordName asks the recorder to pick a database name.
const autoRecordName = "auto"

type options struct {
	geometry     cache.Geometry
	tracePath    string
	configPath   string
	verbose      bool
	verify       bool
	lenientBlocks bool
	recordPath   string
}

func newRootCmd() *cobra.Command {
	opts := &options{geometry: cache.DefaultGeometry()}

	cmd := &cobra.Command{
		Use:   "csim -s <s> -E <E> -b <b> -t <tracefile>",
		Short: "Replay a memory trace through a set-associative LRU cache.",
		Long: `csim replays a Valgrind lackey trace through a set-associative cache with ` +
			`LRU replacement and prints the number of hits, misses and evictions. ` +
			`Instruction fetches are ignored and data modifies count as a load followed ` +
			`by a store to the same address.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.resolveGeometry(cmd); err != nil {
				return err
			}
			return run(cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&opts.geometry.S, "set-bits", "s", opts.geometry.S,
		"number of set index bits (the cache has 2^s sets)")
	flags.IntVarP(&opts.geometry.E, "lines", "E", opts.geometry.E,
		"associativity (number of lines per set)")
	flags.IntVarP(&opts.geometry.B, "block-bits", "b", opts.geometry.B,
		"number of block offset bits (each line holds 2^b bytes)")
	flags.StringVarP(&opts.tracePath, "trace", "t", "", "trace file to replay")
	flags.StringVarP(&opts.configPath, "config", "c", "",
		"JSON file holding the geometry; explicit flags override it")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"print the outcome of every access")
	flags.BoolVar(&opts.verify, "verify", false,
		"cross-check the totals against the akita reference model")
	flags.BoolVar(&opts.lenientBlocks, "lenient-blocks", false,
		"accept data accesses larger than a cache block, as lackey traces carry")
	flags.StringVar(&opts.recordPath, "record", "",
		"record every access into <path>.sqlite3 (--record=<path>, or --record for a generated name)")
	flags.Lookup("record").NoOptDefVal = autoRecordName

	return cmd
}

// resolveGeometry applies the config file, then any geometry flags given on
// the command line.
func (o *options) resolveGeometry(cmd *cobra.Command) error {
	if o.configPath == "" {
		return o.geometry.Validate()
	}

	loaded, err := cache.LoadGeometry(o.configPath)
	if err != nil {
		return fmt.Errorf("loading geometry config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("set-bits") {
		loaded.S = o.geometry.S
	}
	if flags.Changed("lines") {
		loaded.E = o.geometry.E
	}
	if flags.Changed("block-bits") {
		loaded.B = o.geometry.B
	}
	o.geometry = loaded

	return o.geometry.Validate()
}

func run(out io.Writer, o *options) error {
	if o.tracePath == "" {
		return errors.New("a trace file is required (-t)")
	}

	records, err := trace.LoadFile(o.tracePath)
	if err != nil {
		return fmt.Errorf("loading trace: %w", err)
	}

	c, err := cache.New(o.geometry)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}

	var engineOpts []sim.Option
	if o.verbose {
		engineOpts = append(engineOpts, sim.WithHook(sim.NewVerboseHook(out)))
	}
	if o.lenientBlocks {
		engineOpts = append(engineOpts, sim.WithoutBlockBoundCheck())
	}

	var rec *recording.Recorder
	if o.recordPath != "" {
		path := o.recordPath
		if path == autoRecordName {
			path = ""
		}

		rec, err = recording.New(path)
		if err != nil {
			return fmt.Errorf("creating recorder: %w", err)
		}
		defer func() { _ = rec.Close() }()

		engineOpts = append(engineOpts, sim.WithHook(recording.NewAccessHook(rec)))
	}

	result, err := sim.NewEngine(c, engineOpts...).Run(records)
	if err != nil {
		return fmt.Errorf("simulating: %w", err)
	}

	if o.verify {
		if err := reference.Check(o.geometry, records, result); err != nil {
			return fmt.Errorf("verifying: %w", err)
		}
	}

	if rec != nil {
		if err := rec.RecordRun(o.geometry, o.tracePath, result); err != nil {
			return err
		}
		if err := rec.Flush(); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintln(out, result)
	return err
}
