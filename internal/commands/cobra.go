package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RunFunc executes a generated command with its parsed positional args and
// flag values keyed by flag name.
type RunFunc func(cmd *cobra.Command, meta Meta, args []string, flags map[string]interface{}) error

// GenerateCobraCommand creates a Cobra command from registry metadata.
// This reduces boilerplate by generating Use, Short, Long, Args, and flags
// from the registry, while keeping the handler logic separate.
func GenerateCobraCommand(name string, run RunFunc) *cobra.Command {
	meta, ok := Registry[name]
	if !ok {
		return nil
	}

	use := name
	for _, arg := range meta.Args {
		if arg.Required {
			use += fmt.Sprintf(" <%s>", arg.Name)
		} else {
			use += fmt.Sprintf(" [%s]", arg.Name)
		}
	}

	longDesc := meta.Description
	if meta.LongDesc != "" {
		longDesc = meta.LongDesc
	}
	if len(meta.Examples) > 0 {
		longDesc += "\n\nExamples:\n"
		for _, ex := range meta.Examples {
			longDesc += "  " + ex + "\n"
		}
	}

	minArgs := 0
	maxArgs := len(meta.Args)
	for _, arg := range meta.Args {
		if arg.Required {
			minArgs++
		}
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: meta.Description,
		Long:  longDesc,
	}

	if minArgs == maxArgs {
		if minArgs == 0 {
			cmd.Args = cobra.NoArgs
		} else {
			cmd.Args = cobra.ExactArgs(minArgs)
		}
	} else {
		cmd.Args = cobra.RangeArgs(minArgs, maxArgs)
	}

	for _, flag := range meta.Flags {
		desc := flag.Description
		if len(flag.Choices) > 0 {
			desc += " (" + strings.Join(flag.Choices, "|") + ")"
		}
		if flag.Required {
			desc += " (required)"
		}

		switch flag.Type {
		case FlagTypeBool:
			cmd.Flags().BoolP(flag.Name, flag.Short, flag.Default == "true", desc)
		case FlagTypeInt:
			var defaultInt int
			fmt.Sscanf(flag.Default, "%d", &defaultInt)
			cmd.Flags().IntP(flag.Name, flag.Short, defaultInt, desc)
		default:
			cmd.Flags().StringP(flag.Name, flag.Short, flag.Default, desc)
		}
	}

	if len(meta.Args) > 0 {
		cmd.ValidArgsFunction = generateCompletionFunc(meta.Args)
	}
	for _, flag := range meta.Flags {
		if len(flag.Choices) > 0 {
			choices := flag.Choices
			_ = cmd.RegisterFlagCompletionFunc(flag.Name, func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
				return choices, cobra.ShellCompDirectiveNoFileComp
			})
		}
	}

	if run != nil {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			return run(cmd, meta, args, CollectFlags(cmd, meta))
		}
	}

	return cmd
}

// CollectFlags reads every registry flag of meta from cmd.
func CollectFlags(cmd *cobra.Command, meta Meta) map[string]interface{} {
	flags := make(map[string]interface{}, len(meta.Flags))
	for _, flag := range meta.Flags {
		switch flag.Type {
		case FlagTypeBool:
			val, _ := cmd.Flags().GetBool(flag.Name)
			flags[flag.Name] = val
		case FlagTypeInt:
			val, _ := cmd.Flags().GetInt(flag.Name)
			flags[flag.Name] = val
		default:
			val, _ := cmd.Flags().GetString(flag.Name)
			flags[flag.Name] = val
		}
	}
	return flags
}

// MissingRequiredFlags returns the required flags of meta that were not set
// (or were set to an empty string) on cmd.
func MissingRequiredFlags(cmd *cobra.Command, meta Meta) []string {
	var missing []string
	for _, flag := range meta.Flags {
		if !flag.Required {
			continue
		}
		f := cmd.Flags().Lookup(flag.Name)
		if f == nil || !f.Changed || strings.TrimSpace(f.Value.String()) == "" {
			missing = append(missing, flag.Name)
		}
	}
	return missing
}

// InvalidChoice returns the first flag whose value is not one of its Choices.
func InvalidChoice(meta Meta, flags map[string]interface{}) (name, value string, ok bool) {
	for _, flag := range meta.Flags {
		if len(flag.Choices) == 0 {
			continue
		}
		v, _ := flags[flag.Name].(string)
		valid := false
		for _, c := range flag.Choices {
			if strings.EqualFold(v, c) {
				valid = true
				break
			}
		}
		if !valid {
			return flag.Name, v, true
		}
	}
	return "", "", false
}

// generateCompletionFunc creates a shell completion function based on arg metadata.
func generateCompletionFunc(args []ArgMeta) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, completedArgs []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		argIndex := len(completedArgs)
		if argIndex >= len(args) {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		arg := args[argIndex]

		if len(arg.Completions) > 0 {
			var matches []string
			for _, c := range arg.Completions {
				if strings.HasPrefix(c, toComplete) {
					matches = append(matches, c)
				}
			}
			return matches, cobra.ShellCompDirectiveNoFileComp
		}

		if arg.DynamicComp == "files" {
			return []string{"md"}, cobra.ShellCompDirectiveFilterFileExt
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}
