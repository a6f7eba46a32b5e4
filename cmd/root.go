package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/mabhi256/refscan/internal/config"
	"github.com/mabhi256/refscan/internal/observability"
	"github.com/mabhi256/refscan/utils"
)

var (
	cfgFile     string
	projectPath string

	v   = viper.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "refscan",
	Short: "Find missing components and dangling references in scene projects",
	Long: `refscan walks the scenes and assets of a project and reports objects whose
components failed to load, object references that point at nothing, and
prefab instances whose prefab is gone.`,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if slices.Contains([]string{"install", "version", "help", "completion", cobra.ShellCompRequestCmd}, cmd.Name()) {
			return nil
		}

		if isShellSupported() && !completionsExist() {
			fmt.Fprintln(os.Stderr, "🔧 First run detected, setting up refscan...")
			if installCompletions(cmd.Root(), os.Stderr) == nil {
				fmt.Fprintln(os.Stderr, "✅ Shell completions installed")
				fmt.Fprintln(os.Stderr, "💡 Restart your shell to enable tab completion")
			} else {
				fmt.Fprintln(os.Stderr, "⚠️  Auto-setup failed. Run 'refscan install' to try again.")
			}
		}

		// Commands may default flags differently from the root, e.g. watch opens the TUI
		for flag, value := range cmd.Annotations {
			if f := cmd.Flags().Lookup(flag); f != nil && !f.Changed {
				if err := cmd.Flags().Set(flag, value); err != nil {
					return err
				}
			}
		}

		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		// The TUI owns the terminal; only the log file, if any, receives entries
		if cfg.Output.Format == "tui" {
			observability.Initialize(cfg.Logger, zapcore.AddSync(io.Discard))
		} else {
			observability.InitializeLogger(cfg.Logger)
		}
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		observability.Sync()
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shell completions",
	Run: func(cmd *cobra.Command, args []string) {
		if !isInPath() {
			printPathInstructions()
			return
		}

		if !isShellSupported() {
			fmt.Printf("❌ Shell completion not supported for: %s\n", detectShell())
			fmt.Println("Supported shells: bash, zsh, fish, powershell")
			return
		}

		if completionsExist() {
			fmt.Println("✅ Already configured!")
			return
		}

		fmt.Println("📦 Installing completions...")
		if err := installCompletions(cmd.Root(), os.Stdout); err != nil {
			fmt.Printf("❌ Failed: %v\n", err)
		} else {
			fmt.Println("✅ Done! Restart your shell to enable tab completion.")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func completionsExist() bool {
	home, _ := os.UserHomeDir()

	paths := map[string]string{
		"bash":       filepath.Join(home, ".local/share/bash-completion/completions/refscan"),
		"zsh":        filepath.Join(home, ".zsh/completions/_refscan"),
		"fish":       filepath.Join(home, ".config/fish/completions/refscan.fish"),
		"powershell": filepath.Join(home, "refscan_completion.ps1"),
	}

	path := paths[detectShell()]
	_, err := os.Stat(path)
	return err == nil
}

func isShellSupported() bool {
	shell := detectShell()
	return shell == "bash" || shell == "zsh" || shell == "fish" || shell == "powershell"
}

func detectShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		return "bash"
	}
	return filepath.Base(shell)
}

type completionConfig struct {
	dir         string
	file        string
	genFunc     func(io.Writer) error
	activateCmd string
}

func installCompletions(rootCmd *cobra.Command, out io.Writer) error {
	home, _ := os.UserHomeDir()
	shell := detectShell()

	configs := map[string]completionConfig{
		"bash": {
			dir:     filepath.Join(home, ".local/share/bash-completion/completions"),
			file:    "refscan",
			genFunc: rootCmd.GenBashCompletion,
			activateCmd: fmt.Sprintf("source %s",
				filepath.Join(home, ".local/share/bash-completion/completions/refscan")),
		},
		"zsh": {
			dir:     filepath.Join(home, ".zsh/completions"),
			file:    "_refscan",
			genFunc: rootCmd.GenZshCompletion,
			activateCmd: fmt.Sprintf("fpath=(%s $fpath) && autoload -U compinit && compinit",
				filepath.Join(home, ".zsh/completions")),
		},
		"fish": {
			dir:         filepath.Join(home, ".config/fish/completions"),
			file:        "refscan.fish",
			genFunc:     func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
			activateCmd: "complete --do-complete=refscan", // Trigger fish to reload completions
		},
		"powershell": {
			dir:     home,
			file:    "refscan_completion.ps1",
			genFunc: rootCmd.GenPowerShellCompletionWithDesc,
			activateCmd: fmt.Sprintf(". %s",
				filepath.Join(home, "refscan_completion.ps1")),
		},
	}

	cc, ok := configs[shell]
	if !ok {
		return fmt.Errorf("unsupported shell: %s", shell)
	}

	if err := os.MkdirAll(cc.dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(cc.dir, cc.file))
	if err != nil {
		return err
	}
	defer file.Close()

	if err := cc.genFunc(file); err != nil {
		return err
	}

	// Print activation command for immediate use
	fmt.Fprintf(out, "🔄 Run this command to enable auto-completions now:\n")
	fmt.Fprintf(out, "   %s\n", cc.activateCmd)

	return nil
}

func isInPath() bool {
	execPath, err := os.Executable()
	if err != nil {
		return false
	}

	pathEnv := os.Getenv("PATH")
	paths := strings.Split(pathEnv, string(os.PathListSeparator))
	execDir := filepath.Dir(execPath)

	return slices.Contains(paths, execDir)
}

func printPathInstructions() {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)

	fmt.Printf("❌ refscan not in PATH. Binary location: %s\n\n", execPath)

	if runtime.GOOS == "windows" {
		fmt.Printf("Add to PATH: %s\n", execDir)
	} else {
		fmt.Printf("Add to shell profile: export PATH=\"%s:$PATH\"\n", execDir)
		fmt.Printf("Or copy to: /usr/local/bin\n")
	}
}

func init() {
	rootCmd.AddCommand(installCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./.refscan.yaml)")
	flags.StringVarP(&projectPath, "project", "p", ".", "project directory or manifest file")
	flags.StringP("output", "o", "cli", "output format: cli, tui or json")
	flags.Bool("include-hidden", false, "also inspect hidden objects")
	flags.Int("batch-size", 32, "asset objects inspected per step")
	flags.Bool("retain", false, "keep results from earlier scans in the same session")
	flags.BoolP("watch", "w", false, "rescan when project files change")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-file", "", "also write JSON logs to this file")

	for key, flag := range map[string]string{
		"output.format":       "output",
		"scan.include_hidden": "include-hidden",
		"scan.batch_size":     "batch-size",
		"scan.retain_results": "retain",
		"watch.enabled":       "watch",
		"logger.level":        "log-level",
		"logger.log_file":     "log-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return config.OutputFormats, cobra.ShellCompDirectiveNoFileComp
	})
	rootCmd.RegisterFlagCompletionFunc("config", utils.CompleteFilesByExtension(".yaml", ".yml"))
	rootCmd.RegisterFlagCompletionFunc("project", utils.CompleteFilesByExtension(".yaml"))
}
