package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"adbridge/internal/config"
	"adbridge/internal/oauth"
)

// newStateCmd creates the command group for inspecting OAuth state tokens.
// Operators use it to check which chat a callback's state parameter names.
func newStateCmd() *cobra.Command {
	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Encode or decode OAuth state tokens",
		Long: `Encode a chat id into the signed state token the bot puts into
authorization links, or decode a state token taken from a callback URL.

Both use STATE_SECRET from the configuration; tokens signed with a random
per-process key cannot be checked here.`,
	}
	stateCmd.AddCommand(newStateEncodeCmd(), newStateDecodeCmd())
	return stateCmd
}

func newStateEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <chat-id>",
		Short: "Print the state token for a chat id",
		Example: `  adbridge state encode 123456789
  adbridge state encode -1001234567890`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg, err := stateArg(cmd, args)
			if err != nil || arg == "" {
				return err
			}
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid chat id %q", arg)
			}
			codec, err := loadStateCodec()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), codec.Encode(oauth.ChatID(id)))
			return nil
		},
	}
}

func newStateDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <token>",
		Short: "Verify a state token and print its chat id",
		Example: `  adbridge state decode -1001234567890.Qm9ndXNTaWduYXR1cmU`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			arg, err := stateArg(cmd, args)
			if err != nil || arg == "" {
				return err
			}
			codec, err := loadStateCodec()
			if err != nil {
				return err
			}
			id, err := codec.Decode(arg)
			if err != nil {
				return fmt.Errorf("state token rejected: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.String())
			return nil
		},
	}
}

// stateArg extracts the single positional argument of a state subcommand.
// Flag parsing is disabled there because group chat ids and their tokens
// start with "-"; --config-path and --help are recognised by hand and a
// "--" separator is accepted. An empty result with a nil error means help
// was printed.
func stateArg(cmd *cobra.Command, args []string) (string, error) {
	var positional []string
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--":
			continue
		case arg == "-h" || arg == "--help":
			return "", cmd.Help()
		case arg == "--config-path":
			if i+1 >= len(args) {
				return "", errors.New("flag needs an argument: --config-path")
			}
			i++
			configPath = args[i]
		case strings.HasPrefix(arg, "--config-path="):
			configPath = strings.TrimPrefix(arg, "--config-path=")
		default:
			positional = append(positional, arg)
		}
	}
	if len(positional) != 1 {
		return "", fmt.Errorf("accepts 1 arg, received %d", len(positional))
	}
	return positional[0], nil
}

func loadStateCodec() (*oauth.Codec, error) {
	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if cfg.Security.StateSecret == "" {
		return nil, config.ConfigurationError{
			Field:       "STATE_SECRET",
			Source:      "env",
			ErrorType:   config.ErrorTypeMissing,
			Message:     "is required to encode or decode state tokens",
			Suggestions: []string{"export the same STATE_SECRET the running bot uses"},
		}
	}
	codec, err := oauth.NewCodec([]byte(cfg.Security.StateSecret))
	if err != nil {
		return nil, errors.Join(config.ConfigurationError{
			Field:     "STATE_SECRET",
			Source:    "env",
			ErrorType: config.ErrorTypeInvalid,
			Message:   "is not a usable signing key",
		}, err)
	}
	return codec, nil
}
