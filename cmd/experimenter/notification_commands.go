package main

import (
	"fmt"
	"html"
	"strconv"

	"github.com/spf13/cobra"

	"experimenter/internal/api"
	"experimenter/internal/config"
	"experimenter/internal/experiments"
	"experimenter/internal/store"
)

func newNotificationsCommand(ctx *commandContext) *cobra.Command {
	notificationsCmd := &cobra.Command{
		Use:   "notifications",
		Short: "Inspect notifications queued for users",
	}

	notificationsCmd.AddCommand(newNotificationsListCommand(ctx))
	notificationsCmd.AddCommand(newNotificationsReadCommand(ctx))

	return notificationsCmd
}

func newNotificationsListCommand(ctx *commandContext) *cobra.Command {
	var unreadOnly bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <email>",
		Short: "List a user's notifications, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				user, err := st.GetUserByEmail(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				var list []experiments.Notification
				if unreadOnly {
					list, err = st.UnreadNotifications(cmd.Context(), user.ID)
				} else {
					list, err = st.ListNotifications(cmd.Context(), user.ID)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.FromNotifications(list))
				}
				total, unread, err := st.CountNotifications(cmd.Context(), user.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) > 0 {
					rows := make([][]string, 0, len(list))
					for _, n := range list {
						rows = append(rows, []string{
							strconv.FormatInt(n.ID, 10),
							n.CreatedOn.Local().Format(timeLayout),
							yesNo(n.Read),
							truncate(html.UnescapeString(n.Message), 80),
						})
					}
					printTable(out, []string{"ID", "Created", "Read", "Message"}, rows,
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft})
				}
				fmt.Fprintf(out, "%d notification(s), %d unread\n", total, unread)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "Only show unread notifications")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newNotificationsReadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "read <email>",
		Short: "Mark every unread notification of a user as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				user, err := st.GetUserByEmail(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				unread, err := st.UnreadNotifications(cmd.Context(), user.ID)
				if err != nil {
					return err
				}
				ids := make([]int64, 0, len(unread))
				for _, n := range unread {
					ids = append(ids, n.ID)
				}
				if err := st.MarkNotificationsRead(cmd.Context(), ids); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Marked %d notification(s) read\n", len(ids))
				return nil
			})
		},
	}
}
