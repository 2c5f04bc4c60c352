package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"muc-lab/internal"
)

// occupants renders the component's occupancy inspector as a terminal table,
// for a quick look at who is in which room without opening a browser.
func main() {
	url := flag.String("url", "http://localhost:8082/inspect.json", "occupancy inspector JSON endpoint")
	flag.Parse()

	resp, err := http.Get(*url)
	if err != nil {
		log.Fatalf("Failed to reach inspector at %s: %v", *url, err)
	}
	defer resp.Body.Close()

	var report internal.OccupancyReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		log.Fatalf("Failed to decode inspector payload: %v", err)
	}

	header := color.New(color.BgBlack, color.FgGreen).
		Render(fmt.Sprintf("  ====== %d rooms ======", len(report.Rooms)))
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Nick", "Occupant", "Sessions"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, room := range report.Rooms {
		if len(room.Occupants) == 0 {
			table.Append([]string{room.Address, "-", "-", "-"})
			continue
		}
		for _, occupant := range room.Occupants {
			table.Append([]string{
				room.Address,
				occupant.Nick,
				occupant.Occupant,
				strings.Join(occupant.Sessions, " "),
			})
		}
	}
	table.Render()

	fmt.Println()
	for key, value := range report.Stats {
		fmt.Printf("%s: %v\n", key, value)
	}
}
