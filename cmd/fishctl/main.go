// fishctl — консольная утилита администратора: миграции, топ, дамп игрока
// и ручные начисления.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serotonyl.ru/fishing-bot/internal/app"
	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/features/economy"
)

const commandTimeout = 30 * time.Second

// opener открывает движок экономики; close освобождает хранилище.
type opener func(ctx context.Context) (svc *economy.Service, close func(), err error)

func main() {
	log.SetLevel(log.WarnLevel)

	root := newRootCmd(openFromEnv)
	if err := root.Execute(); err != nil {
		printError(os.Stderr, fmt.Sprintf("error: %v", err))
		os.Exit(1)
	}
}

func openFromEnv(ctx context.Context) (*economy.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := app.NewEconomy(store, cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return svc, store.Close, nil
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "fishctl",
		Short:        "Администрирование рыболовного бота",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCmd(open),
		newTopCmd(open),
		newUserCmd(open),
		newGrantCmd(open),
	)
	return root
}

// withEconomy открывает движок, выполняет fn и закрывает хранилище.
func withEconomy(cmd *cobra.Command, open opener, fn func(ctx context.Context, svc *economy.Service) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	svc, closeStore, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, svc)
}

func newMigrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции схемы",
		RunE: func(cmd *cobra.Command, args []string) error {
			// миграции накатываются при открытии хранилища
			return withEconomy(cmd, open, func(context.Context, *economy.Service) error {
				printSuccess(cmd.OutOrStdout(), "Схема в актуальном состоянии.")
				return nil
			})
		},
	}
}

func newTopCmd(open opener) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Топ игроков по монетам",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEconomy(cmd, open, func(ctx context.Context, svc *economy.Service) error {
				top, err := svc.Leaderboard(ctx, limit)
				if err != nil {
					return err
				}
				printLeaderboard(cmd.OutOrStdout(), top)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "сколько игроков показать")
	return cmd
}

func newUserCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "user <id>",
		Short: "Профиль, инвентарь, квесты и покупки игрока",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withEconomy(cmd, open, func(ctx context.Context, svc *economy.Service) error {
				p, err := svc.Profile(ctx, id)
				if err != nil {
					return err
				}
				items, err := svc.Inventory(ctx, id)
				if err != nil {
					return err
				}
				quests, err := svc.Quests(ctx, id)
				if err != nil {
					return err
				}
				purchases, err := svc.Purchases(ctx, id, 10)
				if err != nil {
					return err
				}
				printUser(cmd.OutOrStdout(), p, items, quests, purchases, svc.Timezone())
				return nil
			})
		},
	}
}

func newGrantCmd(open opener) *cobra.Command {
	grant := &cobra.Command{
		Use:   "grant",
		Short: "Ручные начисления",
	}

	grant.AddCommand(&cobra.Command{
		Use:   "coins <id> <amount>",
		Short: "Начислить монеты (промо)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			return withEconomy(cmd, open, func(ctx context.Context, svc *economy.Service) error {
				balance, err := svc.GrantPromoCoins(ctx, id, amount)
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Игрок %d: +%d, баланс %d", id, amount, balance))
				return nil
			})
		},
	})

	grant.AddCommand(&cobra.Command{
		Use:   "quest <id> <quest_key> <delta>",
		Short: "Продвинуть квест",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			delta, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("delta: %w", err)
			}
			return withEconomy(cmd, open, func(ctx context.Context, svc *economy.Service) error {
				reward, err := svc.GrantQuestProgress(ctx, id, args[1], delta)
				if err != nil {
					return err
				}
				if reward == nil {
					printInfo(cmd.OutOrStdout(), fmt.Sprintf("Игрок %d: прогресс %q +%d", id, args[1], delta))
					return nil
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Игрок %d: квест %q выполнен, награда %d", id, args[1], reward.Reward))
				return nil
			})
		},
	})

	return grant
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id должен быть числом: %w", err)
	}
	return id, nil
}
