package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the configured cameras",
	Long: `List the cameras codescan can use and which one each logical camera
(back, front) resolves to. With --probe every device is opened once to
check that it is reachable.`,
	RunE: runDevices,
}

func init() {
	flags := devicesCmd.Flags()
	flags.Bool("json", false, "print devices as JSON")
	flags.Bool("probe", false, "open each device to check it is reachable")
}

// deviceRow is one line of devices output.
type deviceRow struct {
	capture.DeviceInfo
	Selected bool   `json:"selected"`
	Status   string `json:"status,omitempty"`
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	devices, err := cfg.CaptureDevices()
	if err != nil {
		return err
	}
	source := capture.NewGoCVSource(devices, cfg.Scanner.Width, cfg.Scanner.Height)
	probe, _ := cmd.Flags().GetBool("probe")

	rows, err := listDevices(source, probe)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return printDevices(cmd.OutOrStdout(), rows)
}

// listDevices enumerates source and marks the device each position
// resolves to.
func listDevices(source capture.Source, probe bool) ([]deviceRow, error) {
	resolver := device.NewResolver(source)
	infos, err := resolver.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	selected := make(map[string]bool)
	for _, pos := range []capture.Position{capture.PositionBack, capture.PositionFront} {
		if info, err := resolver.Resolve(pos); err == nil {
			selected[info.ID] = true
		}
	}

	rows := make([]deviceRow, 0, len(infos))
	for _, info := range infos {
		row := deviceRow{DeviceInfo: info, Selected: selected[info.ID]}
		if probe {
			row.Status = probeDevice(source, info)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func probeDevice(source capture.Source, info capture.DeviceInfo) string {
	cam, err := source.Open(info)
	if err != nil {
		return err.Error()
	}
	if err := cam.Open(); err != nil {
		return err.Error()
	}
	cam.Close()
	return "ok"
}

func printDevices(out io.Writer, rows []deviceRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "No devices configured.")
		return err
	}

	probed := rows[0].Status != ""
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	header := "ID\tNAME\tINDEX\tPOSITION\tSELECTED\tTORCH\tFOCUS POI"
	if probed {
		header += "\tSTATUS"
	}
	fmt.Fprintln(w, header)

	for _, r := range rows {
		torch := "-"
		if r.HasTorch() {
			modes := make([]string, len(r.TorchModes))
			for i, m := range r.TorchModes {
				modes[i] = m.String()
			}
			torch = strings.Join(modes, ",")
		}
		line := fmt.Sprintf("%s\t%s\t%d\t%s\t%s\t%s\t%s",
			r.ID, r.Name, r.Index, r.Position, yesNo(r.Selected), torch, yesNo(r.FocusPointOfInterest))
		if probed {
			line += "\t" + r.Status
		}
		fmt.Fprintln(w, line)
	}
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
