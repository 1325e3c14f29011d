package main

import (
	"fmt"

	"deskbridge/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
)

// chatIDCmd discovers chat ids for telegram.agentGroupId: send any message in
// the target group, then run this to see the ids Telegram reports.
func chatIDCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "chatid",
		Short: "List chat ids from recent updates (to find your agent group id)",
		Long: `Reads pending updates and prints the id of every chat the bot has seen.
Add the bot to your agent supergroup, send a message there, then run this.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				cfg, err := config.Load(resolveConfigPath())
				if err != nil {
					return fmt.Errorf("load config (or pass --token): %w", err)
				}
				token = cfg.Telegram.Token
			}
			if token == "" {
				return fmt.Errorf("no bot token configured")
			}

			api, err := tgbotapi.NewBotAPI(token)
			if err != nil {
				return fmt.Errorf("telegram bot init: %w", err)
			}

			updates, err := api.GetUpdates(tgbotapi.UpdateConfig{Limit: 100})
			if err != nil {
				return fmt.Errorf("getUpdates: %w", err)
			}
			if len(updates) == 0 {
				fmt.Println("No updates. Send a message in the target group and try again.")
				return nil
			}

			seen := map[int64]bool{}
			for _, u := range updates {
				if u.Message == nil || u.Message.Chat == nil {
					continue
				}
				chat := u.Message.Chat
				if seen[chat.ID] {
					continue
				}
				seen[chat.ID] = true
				switch chat.Type {
				case "group", "supergroup":
					fmt.Printf("%-12s %d  %s\n", chat.Type, chat.ID, chat.Title)
				case "private":
					fmt.Printf("%-12s %d  %s %s\n", chat.Type, chat.ID, chat.FirstName, chat.LastName)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bot token (default: from config)")
	return cmd
}
