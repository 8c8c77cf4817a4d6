package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"sync"

	fcolor "github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"schooldir/pkg/client"
)

var (
	seedNames  = []string{"St. Xavier's", "Delhi Public", "Kendriya Vidyalaya", "Modern", "Holy Cross", "Sunrise", "Greenfield", "Bal Bharati"}
	seedPlaces = [][2]string{
		{"Mumbai", "Maharashtra"},
		{"Pune", "Maharashtra"},
		{"Bengaluru", "Karnataka"},
		{"Chennai", "Tamil Nadu"},
		{"Kolkata", "West Bengal"},
		{"Jaipur", "Rajasthan"},
		{"Lucknow", "Uttar Pradesh"},
		{"New Delhi", "Delhi"},
	}
)

type seedResult struct {
	Name    string
	Success bool
	Error   error
}

func seedCmd() *cobra.Command {
	var (
		total   int
		workers int
		images  int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the directory with generated sample schools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if total <= 0 || workers <= 0 || images <= 0 {
				return fmt.Errorf("--count, --workers and --images must be positive")
			}

			pterm.DefaultHeader.WithFullWidth().
				WithBackgroundStyle(pterm.NewStyle(pterm.BgLightMagenta)).
				WithTextStyle(pterm.NewStyle(pterm.FgBlack)).
				Println("SCHOOL DIRECTORY SEEDER")
			pterm.Println()

			data := pterm.TableData{
				{"Target Server", fcolor.New(fcolor.FgCyan).Sprint(apiURL)},
				{"Schools", fcolor.New(fcolor.FgYellow).Sprintf("%d schools", total)},
				{"Images", fcolor.New(fcolor.FgYellow).Sprintf("%d per school", images)},
				{"Concurrency", fcolor.New(fcolor.FgYellow).Sprintf("%d workers", workers)},
			}
			_ = pterm.DefaultTable.WithBoxed().WithData(data).Render()
			pterm.Println()

			c := newClient(client.WithFreshness(0))
			defer c.Close()

			bar, _ := pterm.DefaultProgressbar.
				WithTotal(total).
				WithTitle("Seeding schools...").
				WithShowCount(true).
				WithShowElapsedTime(true).
				Start()

			var wg sync.WaitGroup
			jobs := make(chan int, total)
			results := make(chan seedResult, total)

			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := range jobs {
						payload := sampleSchool(j, images)
						_, err := c.CreateSchool(cmd.Context(), payload)
						results <- seedResult{Name: payload.Name, Success: err == nil, Error: err}
						bar.Increment()
					}
				}()
			}

			for i := 1; i <= total; i++ {
				jobs <- i
			}
			close(jobs)

			wg.Wait()
			close(results)
			bar.Stop()

			var failures []seedResult
			successCount := 0
			for res := range results {
				if res.Success {
					successCount++
				} else {
					failures = append(failures, res)
				}
			}

			pterm.Println()
			if len(failures) == 0 {
				pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgGreen)).Println("SEEDING COMPLETED SUCCESSFULLY")
				pterm.Info.Printf("Created %d schools.\n", successCount)
				return nil
			}

			pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgYellow)).Println("COMPLETED WITH ERRORS")
			pterm.Info.Printf("Success: %d | Failed: %d\n", successCount, len(failures))
			pterm.Println()
			pterm.Error.Println("Failure Report:")
			for _, f := range failures {
				fmt.Printf(" - %s: %v\n", fcolor.RedString(f.Name), f.Error)
			}
			return fmt.Errorf("%d of %d schools failed", len(failures), total)
		},
	}

	cmd.Flags().IntVarP(&total, "count", "n", 20, "Schools to create")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Concurrent uploads")
	cmd.Flags().IntVar(&images, "images", 2, "Images per school")
	return cmd
}

func sampleSchool(n, images int) client.SchoolCreateData {
	place := seedPlaces[rand.Intn(len(seedPlaces))]
	name := fmt.Sprintf("%s School #%d", seedNames[rand.Intn(len(seedNames))], n)

	data := client.SchoolCreateData{
		Name:    name,
		Address: fmt.Sprintf("%d Main Road, %s", 10+rand.Intn(900), place[0]),
		City:    place[0],
		State:   place[1],
		Contact: fmt.Sprintf("9%09d", rand.Intn(1_000_000_000)),
		EmailID: fmt.Sprintf("office%d@school.example.com", n),
	}
	for i := 0; i < images; i++ {
		data.Images = append(data.Images, client.ImageFile{
			Filename: fmt.Sprintf("school-%d-%d.png", n, i+1),
			MimeType: "image/png",
			Data:     noiseImage(64),
		})
	}
	return data
}

// noiseImage renders a small random PNG.
func noiseImage(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	base := color.RGBA{uint8(rand.Intn(256)), uint8(rand.Intn(256)), uint8(rand.Intn(256)), 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{base.R ^ uint8(x*4), base.G ^ uint8(y*4), base.B, 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
