package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-vehicle-market/chat"
	"github.com/spf13/cobra"
)

func (c *cli) chatCmd() *cobra.Command {
	var vehicleID string
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the marketplace assistant; interactive without a message",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv := chat.NewConversation(c.app.client, chat.WithLogger(c.app.logger))

			var vehicleContext map[string]any
			if vehicleID != "" {
				v, err := c.app.catalog.GetVehicle(cmd.Context(), vehicleID)
				if err != nil {
					return err
				}
				vehicleContext = map[string]any{"vehicle": v}
			}

			if len(args) == 1 {
				reply, err := conv.Send(cmd.Context(), args[0], vehicleContext)
				if err != nil {
					return err
				}
				return c.print(map[string]string{"conversation": conv.ID().String(), "reply": reply})
			}

			out := cmd.OutOrStdout()
			for _, m := range conv.History() {
				fmt.Fprintf(out, "%s> %s\n", m.Role, m.Content)
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for fmt.Fprint(out, "you> "); scanner.Scan(); fmt.Fprint(out, "you> ") {
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "exit", "quit":
					return nil
				case "reset":
					conv.Reset()
					continue
				}
				reply, err := conv.Send(cmd.Context(), line, vehicleContext)
				if err != nil {
					c.app.logger.Error().Err(err).Msg("Chat message failed")
					continue
				}
				fmt.Fprintf(out, "%s> %s\n", chat.RoleAssistant, reply)
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&vehicleID, "vehicle", "", "vehicle id to discuss")
	return cmd
}
