package main

import (
	"strconv"

	"github.com/jrsteele09/go-vehicle-market/catalog"
	"github.com/spf13/cobra"
)

func (c *cli) vehiclesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vehicles",
		Aliases: []string{"v"},
		Short:   "Browse vehicle listings",
	}

	var f catalog.Filters
	var sortBy string
	list := &cobra.Command{
		Use:   "list",
		Short: "List vehicles matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.SortBy = catalog.SortOrder(sortBy)
			vehicles, err := c.app.catalog.ListVehicles(cmd.Context(), f)
			if err != nil {
				return err
			}
			return c.print(vehicles)
		},
	}
	flags := list.Flags()
	flags.StringVar(&f.Brand, "brand", "", "make name")
	flags.StringVar(&f.Engine, "engine", "", "engine description")
	flags.IntVar(&f.MinYear, "min-year", 0, "")
	flags.IntVar(&f.MaxYear, "max-year", 0, "")
	flags.IntVar(&f.MinPrice, "min-price", 0, "")
	flags.IntVar(&f.MaxPrice, "max-price", 0, "")
	flags.StringVarP(&f.Query, "query", "q", "", "free text query")
	flags.StringVar(&sortBy, "sort", "", "views, price_asc, price_desc or year_desc")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := c.app.catalog.GetVehicle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(v)
		},
	}

	search := &cobra.Command{
		Use:   "search <text>",
		Short: "Match text against name, make and model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vehicles, err := c.app.catalog.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(vehicles)
		},
	}

	var limit int
	latest := &cobra.Command{
		Use:   "latest",
		Short: "Newest model years first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vehicles, err := c.app.catalog.Latest(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return c.print(vehicles)
		},
	}
	latest.Flags().IntVarP(&limit, "limit", "n", catalog.DefaultLatest, "")

	var topLimit int
	mostViewed := &cobra.Command{
		Use:   "most-viewed",
		Short: "Most viewed vehicles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vehicles, err := c.app.catalog.MostViewed(cmd.Context(), topLimit)
			if err != nil {
				return err
			}
			return c.print(vehicles)
		},
	}
	mostViewed.Flags().IntVarP(&topLimit, "limit", "n", catalog.DefaultMostViewed, "")

	favorites := &cobra.Command{
		Use:   "favorites",
		Short: "The signed-in user's favourite vehicles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSignedIn(); err != nil {
				return err
			}
			vehicles, err := c.app.catalog.Favorites(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(vehicles)
		},
	}

	cmd.AddCommand(list, get, search, latest, mostViewed, favorites)
	return cmd
}

func (c *cli) favoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorite <vehicle-id>",
		Short: "Add or remove a vehicle from the favourites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			added, err := c.app.session.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(map[string]any{"vehicleId": args[0], "favorite": added})
		},
	}
}

func (c *cli) reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Write or remove vehicle reviews",
	}

	var comment string
	add := &cobra.Command{
		Use:   "add <vehicle-id> <rating>",
		Short: "Rate a vehicle from 1 to 5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			review, err := c.app.catalog.AddReview(cmd.Context(), args[0], rating, comment)
			if err != nil {
				return err
			}
			return c.print(review)
		},
	}
	add.Flags().StringVarP(&comment, "comment", "m", "", "review text")

	remove := &cobra.Command{
		Use:   "delete <review-id>",
		Short: "Delete a review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.catalog.DeleteReview(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func (c *cli) taxonomyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Makes, models, bodies, drive types and variant details",
	}

	makes := &cobra.Command{
		Use:  "makes",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.app.catalog.Makes(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}

	var makeID int
	models := &cobra.Command{
		Use:  "models",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.app.catalog.Models(cmd.Context(), makeID)
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
	models.Flags().IntVar(&makeID, "make", 0, "only models of this make id")

	bodies := &cobra.Command{
		Use:  "bodies",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.app.catalog.Bodies(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}

	driveTypes := &cobra.Command{
		Use:  "drive-types",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.app.catalog.DriveTypes(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}

	var df catalog.DetailFilters
	details := &cobra.Command{
		Use:  "details",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.app.catalog.VehicleDetails(cmd.Context(), df)
			if err != nil {
				return err
			}
			return c.print(out)
		},
	}
	details.Flags().IntVar(&df.MakeID, "make", 0, "")
	details.Flags().IntVar(&df.ModelID, "model", 0, "")
	details.Flags().IntVar(&df.Year, "year", 0, "")

	cmd.AddCommand(makes, models, bodies, driveTypes, details)
	return cmd
}
