package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"schooldir/pkg/client"
	"schooldir/pkg/utils"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every school, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			defer c.Close()

			schools, err := c.ListSchools(cmd.Context())
			if err != nil {
				return err
			}
			renderSchools(schools)
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search schools by name, city or state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			defer c.Close()

			schools, err := c.SearchSchools(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pterm.Info.Printf("Found %d schools matching %q\n", len(schools), strings.TrimSpace(args[0]))
			renderSchools(schools)
			return nil
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one school",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := utils.ParseID(args[0])
			if !ok {
				return fmt.Errorf("invalid school id %q", args[0])
			}

			c := newClient()
			defer c.Close()

			school, err := c.GetSchool(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderSchool(c, school)
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var (
		data   client.SchoolCreateData
		images []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a school with one or more photos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range images {
				img, err := readImage(path)
				if err != nil {
					return err
				}
				data.Images = append(data.Images, img)
			}

			c := newClient()
			defer c.Close()

			spinner, _ := pterm.DefaultSpinner.Start("Uploading school...")
			school, err := c.CreateSchool(cmd.Context(), data)
			if err != nil {
				spinner.Fail("Upload failed")
				return err
			}
			spinner.Success(fmt.Sprintf("School created (id %d)", school.ID))
			renderSchool(c, school)
			return nil
		},
	}

	cmd.Flags().StringVar(&data.Name, "name", "", "School name (Required)")
	cmd.Flags().StringVar(&data.Address, "address", "", "Street address (Required)")
	cmd.Flags().StringVar(&data.City, "city", "", "City (Required)")
	cmd.Flags().StringVar(&data.State, "state", "", "State (Required)")
	cmd.Flags().StringVar(&data.Contact, "contact", "", "10 digit phone number (Required)")
	cmd.Flags().StringVar(&data.EmailID, "email", "", "Contact email (Required)")
	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "Image file, repeat for several (Required)")

	for _, f := range []string{"name", "address", "city", "state", "contact", "email", "image"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func imageCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "image <id>",
		Short: "Download a stored image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			defer c.Close()

			img, err := c.FetchImage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			target := output
			if target == "" {
				target = img.Filename
			}
			if target == "" {
				target = "image-" + args[0]
			}
			if err := os.WriteFile(target, img.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			pterm.Success.Printf("Saved %s (%s, %s)\n", target, img.MimeType, utils.FormatBytes(int64(len(img.Data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (defaults to the stored filename)")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(client.WithRetries(0, 0))
			defer c.Close()

			spinner, _ := pterm.DefaultSpinner.Start("Checking server...")
			h, err := c.Health(cmd.Context())
			if err != nil {
				spinner.Fail("Server is DOWN! (" + c.BaseURL() + ")")
				return err
			}
			spinner.Success("Server is UP! (" + c.BaseURL() + ")")

			data := pterm.TableData{
				{"Environment", h.Environment},
				{"Version", h.Version},
				{"Uptime", h.Uptime},
				{"Database", h.Database},
				{"Schools", strconv.FormatInt(h.Stats.Schools, 10)},
				{"Images", strconv.FormatInt(h.Stats.Images, 10)},
				{"Image storage", utils.FormatBytes(h.Stats.ImageBytes)},
			}
			return pterm.DefaultTable.WithBoxed().WithData(data).Render()
		},
	}
}

func readImage(path string) (client.ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return client.ImageFile{}, fmt.Errorf("read image: %w", err)
	}
	return client.ImageFile{
		Filename: filepath.Base(path),
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:     data,
	}, nil
}

func renderSchools(schools []client.School) {
	if len(schools) == 0 {
		pterm.Warning.Println("No schools found.")
		return
	}

	data := pterm.TableData{{"ID", "Name", "City", "State", "Contact", "Images"}}
	for _, s := range schools {
		data = append(data, []string{
			strconv.FormatUint(uint64(s.ID), 10),
			s.Name,
			s.City,
			s.State,
			s.Contact,
			strconv.Itoa(len(s.Images)),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderSchool(c *client.Client, s client.School) {
	data := pterm.TableData{
		{"ID", strconv.FormatUint(uint64(s.ID), 10)},
		{"Name", s.Name},
		{"Address", s.Address},
		{"City", s.City},
		{"State", s.State},
		{"Contact", s.Contact},
		{"Email", s.EmailID},
		{"Created", s.CreatedAt.Local().Format("2006-01-02 15:04")},
	}
	for i, id := range s.Images {
		data = append(data, []string{fmt.Sprintf("Image %d", i+1), c.ImageURL(id)})
	}
	pterm.DefaultTable.WithBoxed().WithData(data).Render()
}
