package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go"

	"tsreduce/internal/reduce"
	"tsreduce/internal/reduce/passes"
)

var (
	fileFlags            []string
	snapshotDirFlag      string
	snapshotIntervalFlag int
	maxSnapshotsFlag     int
	jobsFlag             int
	randomSeedFlag       uint64
	doNotValidateFlag    bool
	noProgressFlag       bool
	resumeFlag           bool
	traceFlag            bool
	testCommandFlag      string
)

// runCmd represents the run command: the argument surface spec.md §6
// names. Most flags map onto reduce.RunnerConfig; --test builds the
// ShellTest and --trace (with the root --verbose) selects the log level.
var runCmd = &cobra.Command{
	Use:   "run [root_path]",
	Short: "Reduce a directory tree against an interestingness test",
	Long: `run minimizes root_path (or, with --resume, the latest snapshot)
against the command given by --test, using a pool of sandboxed workers
and the built-in RemoveLines and TreeSitterReplace passes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReduce,
}

func init() {
	runCmd.Flags().StringArrayVar(&fileFlags, "file", nil, "restrict reduction to paths matching this gitignore-style pattern (repeatable)")
	runCmd.Flags().StringVar(&snapshotDirFlag, "snapshot-directory", "", "directory to write periodic snapshots into (required)")
	runCmd.Flags().IntVar(&snapshotIntervalFlag, "snapshot-interval", 10, "minimum seconds between snapshots; 0 means after every reduction")
	runCmd.Flags().IntVar(&maxSnapshotsFlag, "max-snapshots", 10, "maximum snapshots to retain, oldest pruned first")
	runCmd.Flags().IntVarP(&jobsFlag, "jobs", "j", 4, "worker count")
	runCmd.Flags().Uint64Var(&randomSeedFlag, "random-seed", 0, "deterministic seed (only meaningful with -j 1)")
	runCmd.Flags().BoolVar(&doNotValidateFlag, "do-not-validate-input", false, "skip the initial interestingness check")
	runCmd.Flags().BoolVar(&noProgressFlag, "no-progress-bars", false, "log-only output, no spinner lines")
	runCmd.Flags().BoolVar(&resumeFlag, "resume", false, "resume from the latest snapshot in --snapshot-directory")
	runCmd.Flags().BoolVar(&traceFlag, "trace", false, "enable trace-level logging (very verbose)")
	runCmd.Flags().StringVar(&testCommandFlag, "test", "", "executable path to run as the interestingness test; receives no arguments (required)")

	_ = runCmd.MarkFlagRequired("snapshot-directory")
	_ = runCmd.MarkFlagRequired("test")
}

func runReduce(cmd *cobra.Command, args []string) error {
	logger := reduce.NewLogger(verboseFlag, traceFlag)

	rootPath := ""
	if len(args) == 1 {
		rootPath = args[0]
	}
	if rootPath == "" && !resumeFlag {
		return fmt.Errorf("root_path is required unless --resume is given")
	}

	var fileFilter func(string) bool
	if len(fileFlags) > 0 {
		patterns := append([]string(nil), fileFlags...)
		fileFilter = func(path string) bool { return reduce.MatchAnyFilePattern(patterns, path) }
	}

	if resumeFlag {
		sm, err := reduce.NewSnapshotManager(snapshotDirFlag, 0, maxSnapshotsFlag, true)
		if err != nil {
			return err
		}
		latest, ok, err := sm.Latest()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("--resume given but %s has no snapshots to resume from", snapshotDirFlag)
		}
		rootPath = sm.Path(latest)
		logger.Info("resuming from snapshot", "snapshot", latest)
	}

	cfg := reduce.RunnerConfig{
		RootPath:           rootPath,
		Jobs:               jobsFlag,
		RandomSeed:         int64(randomSeedFlag),
		DoNotValidateInput: doNotValidateFlag,
		ShowProgress:       !noProgressFlag,
		SnapshotDir:        snapshotDirFlag,
		SnapshotInterval:   time.Duration(snapshotIntervalFlag) * time.Second,
		MaxSnapshots:       maxSnapshotsFlag,
		Resume:             resumeFlag,
		FileFilter:         fileFilter,
		Logger:             logger,
	}

	goLang := tree_sitter.NewLanguage(tree_sitter_go.Language())

	passList := []reduce.Pass{
		passes.NewRemoveLines(),
		passes.NewTreeSitterReplace(passes.TreeSitterReplaceConfig{
			Language: goLang,
			Name:     "TreeSitterReplace",
			Matcher:  passes.EmptyFunctionBodyMatcher,
		}),
	}

	test := reduce.NewShellTest(testCommandFlag)

	runner, err := reduce.NewRunner(cfg, passList, test)
	if err != nil {
		return err
	}

	count, err := runner.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tsreduce: %v\n", err)
		os.Exit(1)
	}
	logger.Info("run complete", "reductions", count)
	return nil
}
