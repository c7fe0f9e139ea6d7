package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jxzhangjhu/guidance/pkg/cache"
	"github.com/jxzhangjhu/guidance/pkg/client"
)

// tokenClient builds a client for tokenizer access only. It opens no cache
// or tracker and makes no provider calls.
func (a *app) tokenClient() (*client.Client, error) {
	return client.New(*a.cfg, client.WithCache(cache.NewMemory()), client.WithLogger(a.logger))
}

func newTokensCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Encode and decode text with the model tokenizer",
	}

	encodeCmd := &cobra.Command{
		Use:   "encode <text>",
		Short: "Print the token ids of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.tokenClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			ids, err := c.Encode(strings.Join(args, " "))
			if err != nil {
				return err
			}
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = strconv.Itoa(id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, " "))
			return nil
		},
	}

	decodeCmd := &cobra.Command{
		Use:   "decode <id>...",
		Short: "Print the text of token ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int, 0, len(args))
			for _, arg := range args {
				for _, field := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
					id, err := strconv.Atoi(field)
					if err != nil {
						return fmt.Errorf("invalid token id %q: %w", field, err)
					}
					ids = append(ids, id)
				}
			}
			c, err := a.tokenClient()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()
			text, err := c.Decode(ids)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.AddCommand(encodeCmd, decodeCmd)
	return cmd
}
