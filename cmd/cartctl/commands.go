package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fjod/cartsync/internal/cartclient"
	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/internal/storefront"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cart.Load(cmd.Context()); err != nil {
				return err
			}
			a.printCart()
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var (
		product storefront.Product
		qty     int
	)
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Long: `Add a product to the cart after checking the login status.

With --qty above 1 the units are added one at a time, as the product page does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			product.ID = domain.ProductID(args[0])
			var err error
			if qty == 1 {
				err = a.flow.AddToCart(cmd.Context(), product)
			} else {
				err = a.flow.AddToCartDetail(cmd.Context(), product, qty)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "cart: %d item(s)\n", a.cart.ItemCount())
			return nil
		},
	}
	cmd.Flags().StringVar(&product.Name, "name", "", "product name")
	cmd.Flags().Float64Var(&product.Price, "price", 0, "unit price")
	cmd.Flags().StringVar(&product.Image, "image", "", "image URL")
	cmd.Flags().StringVar(&product.Container, "container", "", "container type")
	cmd.Flags().IntVar(&qty, "qty", 1, fmt.Sprintf("quantity, %d to %d", storefront.MinQuantity, storefront.MaxQuantity))
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove an item's product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			if err := a.cart.Load(cmd.Context()); err != nil {
				return err
			}
			if err := a.cart.Remove(cmd.Context(), itemID); err != nil {
				return err
			}
			a.printCart()
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update <item-id> <quantity>",
		Short: "Set the quantity of an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[1], cartclient.ErrInvalidQuantity)
			}
			if err := a.cart.Load(cmd.Context()); err != nil {
				return err
			}
			if err := a.cart.UpdateQuantity(cmd.Context(), itemID, qty); err != nil {
				return err
			}
			a.printCart()
			return nil
		},
	}
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every item from the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cart.Load(cmd.Context()); err != nil {
				return err
			}
			if err := a.cart.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "cart cleared")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the session is logged in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := a.svc.LoginStatus(cmd.Context())
			if err != nil {
				return err
			}
			if !status.LoggedIn {
				fmt.Fprintln(a.out, "not logged in")
				return nil
			}
			fmt.Fprintf(a.out, "logged in as %s\n", status.UserEmail)
			return nil
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print a token for CART_TOKEN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("CART_PASSWORD")
			}
			token, err := a.svc.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "export CART_TOKEN=%s\n", token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (env CART_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) printCart() {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "cart is empty")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tNAME\tQTY\tPRICE")
	for _, item := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f\n", item.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice)
	}
	tw.Flush()
	fmt.Fprintf(a.out, "items: %d  total: %s\n", a.cart.ItemCount(), a.cart.TotalDecimal().StringFixed(2))
}

func parseItemID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("item id must be a positive integer, got %q", s)
	}
	return id, nil
}
