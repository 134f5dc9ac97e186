package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/voxhall/voxhall/internal/config"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, err := effectiveConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(eff)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a key",
		Long:  "Prints the value the server would actually use for <key>, after defaults and environment overrides. With --raw, prints only what the config file stores.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ParseConfigPath(args[0])
			if err != nil {
				return err
			}

			var tree map[string]any
			if raw {
				tree, err = config.LoadRaw(paths.Config)
			} else {
				tree, err = effectiveConfig()
			}
			if err != nil {
				return err
			}

			val, ok := config.GetValueAtPath(tree, path)
			if !ok {
				return fmt.Errorf("key %q is not set", args[0])
			}
			return printConfigValue(val)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the stored value instead of the effective one")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a value into the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ParseConfigPath(args[0])
			if err != nil {
				return err
			}

			tree, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}

			value := coerceValue(args[1])
			config.SetValueAtPath(tree, path, value)

			if err := config.SaveRaw(paths.Config, tree); err != nil {
				return err
			}

			fmt.Printf("%s = %v\n", args[0], value)
			warnIfInvalid()
			return nil
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a key from the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ParseConfigPath(args[0])
			if err != nil {
				return err
			}

			tree, err := config.LoadRaw(paths.Config)
			if err != nil {
				return err
			}

			if !config.UnsetValueAtPath(tree, path) {
				return fmt.Errorf("key %q is not set", args[0])
			}

			if err := config.SaveRaw(paths.Config, tree); err != nil {
				return err
			}

			fmt.Printf("unset %s\n", args[0])
			warnIfInvalid()
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(paths.Config)
		},
	}
}

// effectiveConfig loads the config the way the server would (defaults,
// env overrides, credential expansion) and returns it as a generic tree,
// with the API key masked so it never lands in a terminal scrollback.
func effectiveConfig() (map[string]any, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Chat.APIKey != "" {
		cfg.Chat.APIKey = "(redacted)"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// warnIfInvalid re-validates the stored file after an edit so a bad value is
// flagged now rather than at the next serve.
func warnIfInvalid() {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		fmt.Printf("warning: config no longer loads: %v\n", err)
		return
	}
	for _, issue := range config.Validate(&cfg) {
		fmt.Printf("warning: %s\n", issue)
	}
}

func printConfigValue(v any) error {
	switch val := v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(val)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		fmt.Println(val)
	}
	return nil
}

// coerceValue interprets a command-line argument as the most specific YAML
// scalar it parses as, so `set server.port 9000` stores a number and
// `set logging.level info` stores a string.
func coerceValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
