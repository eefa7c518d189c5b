package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jrsteele09/go-vehicle-market/admin"
	"github.com/jrsteele09/go-vehicle-market/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (c *cli) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Staff tools",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Totals and search analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.app.admin.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(s)
		},
	}

	upload := &cobra.Command{
		Use:   "upload <file>",
		Short: "Bulk import vehicles from a CSV or spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			result, err := c.app.admin.UploadVehicles(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			return c.print(result)
		},
	}

	var templateOut string
	template := &cobra.Command{
		Use:   "template",
		Short: "Download the upload template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := c.app.admin.UploadTemplate(cmd.Context())
			if err != nil {
				return err
			}
			if templateOut == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			return os.WriteFile(templateOut, body, 0o644)
		},
	}
	template.Flags().StringVarP(&templateOut, "file", "f", "", "write to this file instead of stdout")

	cmd.AddCommand(stats, upload, template, c.featuresCmd(), c.editVehicleCmd(), c.imageCmd())
	return cmd
}

func (c *cli) featuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Show the landing page features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			features, err := c.app.admin.Features(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(features)
		},
	}

	set := &cobra.Command{
		Use:   "set <file.yaml>",
		Short: "Replace the features with the list in a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var features []admin.Feature
			if err := yaml.Unmarshal(data, &features); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			saved, err := c.app.admin.UpdateFeatures(cmd.Context(), features)
			if err != nil {
				return err
			}
			return c.print(saved)
		},
	}

	cmd.AddCommand(set)
	return cmd
}

func (c *cli) editVehicleCmd() *cobra.Command {
	var description, title string
	cmd := &cobra.Command{
		Use:   "edit <vehicle-id>",
		Short: "Change a listing's title or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update admin.VehicleUpdate
			if cmd.Flags().Changed("description") {
				update.Description = utils.Ptr(description)
			}
			if cmd.Flags().Changed("title") {
				update.CustomTitle = utils.Ptr(title)
			}
			if update.Description == nil && update.CustomTitle == nil {
				return fmt.Errorf("nothing to change, pass --title or --description")
			}
			v, err := c.app.admin.UpdateVehicle(cmd.Context(), args[0], update)
			if err != nil {
				return err
			}
			return c.print(v)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "")
	cmd.Flags().StringVar(&title, "title", "", "custom title")
	return cmd
}

func (c *cli) imageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage vehicle images",
	}

	add := &cobra.Command{
		Use:  "add <vehicle-id> <file>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			img, err := c.app.admin.UploadVehicleImage(cmd.Context(), args[0], filepath.Base(args[1]), f)
			if err != nil {
				return err
			}
			return c.print(img)
		},
	}

	remove := &cobra.Command{
		Use:  "delete <image-id>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			return c.app.admin.DeleteVehicleImage(cmd.Context(), id)
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}
