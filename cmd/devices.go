// cmd/devices.go
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/clapdetector/internal/audio"
	"github.com/ColonelBlimp/clapdetector/internal/output"
)

var devicesFormat string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture devices",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

func init() {
	devicesCmd.Flags().StringVarP(&devicesFormat, "output", "o", "table", "output format: yaml, json or table")
}

type deviceList []audio.DeviceInfo

func (d deviceList) Header() []string {
	return []string{"INDEX", "NAME", "DEFAULT"}
}

func (d deviceList) Rows() [][]string {
	rows := make([][]string, len(d))
	for i, dev := range d {
		def := ""
		if dev.IsDefault {
			def = "*"
		}
		rows[i] = []string{strconv.Itoa(dev.Index), dev.Name, def}
	}
	return rows
}

func runDevices(cmd *cobra.Command, _ []string) error {
	format, err := output.ParseFormat(devicesFormat)
	if err != nil {
		return err
	}

	capture := newCapture(settings)
	if err := capture.Init(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	defer closeCapture(capture)

	devices, err := capture.ListDevices()
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	return output.Write(cmd.OutOrStdout(), format, deviceList(devices))
}
