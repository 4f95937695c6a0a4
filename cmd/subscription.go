package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/dining-watcher/internal/app"
	"github.com/example/dining-watcher/internal/config"
	"github.com/example/dining-watcher/internal/logging"
	"github.com/example/dining-watcher/internal/subscription"
)

func newSubscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Manage availability subscriptions (non-UI intake)",
	}
	cmd.AddCommand(newSubscriptionAddCmd())
	cmd.AddCommand(newSubscriptionListCmd())
	return cmd
}

func newSubscriptionAddCmd() *cobra.Command {
	var (
		owner          string
		locationID     string
		locationName   string
		restaurantID   string
		restaurantName string
		partySize      int
		date           string
		mealPeriod     string
	)

	c := &cobra.Command{
		Use:   "add",
		Short: "Create a subscription watching one restaurant/date/meal period",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			store, _, closeStore, err := app.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			d, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}

			sub := subscription.Subscription{
				Owner: owner,
				Resource: subscription.ResourceRef{
					LocationID:     locationID,
					LocationName:   locationName,
					RestaurantID:   restaurantID,
					RestaurantName: restaurantName,
				},
				Criteria: subscription.Criteria{
					PartySize:  partySize,
					Date:       d,
					MealPeriod: subscription.MealPeriod(mealPeriod),
				},
			}

			id, err := store.Add(ctx, sub)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created subscription id=%s restaurant=%s date=%s meal=%s\n",
				id, restaurantID, date, mealPeriod)
			return nil
		},
	}

	c.Flags().StringVar(&owner, "owner", "", "requester identifier used for notification routing")
	c.Flags().StringVar(&locationID, "location-id", "", "parent location id")
	c.Flags().StringVar(&locationName, "location-name", "", "parent location display name")
	c.Flags().StringVar(&restaurantID, "restaurant-id", "", "restaurant id to watch")
	c.Flags().StringVar(&restaurantName, "restaurant-name", "", "restaurant display name")
	c.Flags().IntVar(&partySize, "party-size", 2, "party size (1-20)")
	c.Flags().StringVar(&date, "date", "", "target date YYYY-MM-DD")
	c.Flags().StringVar(&mealPeriod, "meal-period", "", "Breakfast, Brunch, Lunch or Dinner")

	_ = c.MarkFlagRequired("owner")
	_ = c.MarkFlagRequired("location-id")
	_ = c.MarkFlagRequired("restaurant-id")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("meal-period")
	return c
}

func newSubscriptionListCmd() *cobra.Command {
	var owner string

	c := &cobra.Command{
		Use:   "list",
		Short: "List active subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			store, _, closeStore, err := app.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			var subs []subscription.Subscription
			if owner != "" {
				subs, err = store.ListByOwner(ctx, owner)
			} else {
				subs, err = store.Active(ctx)
			}
			if err != nil {
				return err
			}

			for _, s := range subs {
				checked := "never"
				if s.LastCheckedAt != nil {
					checked = s.LastCheckedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(os.Stdout, "id=%s owner=%s restaurant=%q party=%d date=%s meal=%s checked=%s\n",
					s.ID, s.Owner, s.Resource.RestaurantName, s.Criteria.PartySize,
					s.Criteria.Date.Format("2006-01-02"), s.Criteria.MealPeriod, checked)
			}
			return nil
		},
	}
	c.Flags().StringVar(&owner, "owner", "", "filter by owner")
	return c
}
