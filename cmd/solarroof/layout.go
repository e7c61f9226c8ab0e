package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/aclements/solarroof"
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	styleNumber = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

func (c *cli) layoutCommand() *cobra.Command {
	var stlPath string
	cmd := &cobra.Command{
		Use:   "layout SCENE",
		Short: "Lay out panels and print the yield report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			s, err := loadScene(args[0], c.log)
			if err != nil {
				return err
			}
			p, err := s.planner(c.log)
			if err != nil {
				return err
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			rep := p.Report()
			c.log.Debug("laid out roof", "panels", rep.Total.PanelCount, "took", time.Since(start).Round(time.Millisecond))
			printReport(c.out, p.PanelSpec(), rep)

			if stlPath != "" {
				if err := writeSTL(stlPath, p.Layouts()); err != nil {
					return err
				}
				c.log.Info("wrote panel mesh", "path", stlPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stlPath, "stl", "", "write the placed panels as a binary STL mesh to `file`")
	return cmd
}

func writeSTL(path string, layouts []solarroof.LayoutResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := solarroof.PanelMesh(layouts...).WriteSTL(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printReport(w io.Writer, spec solarroof.PanelSpec, rep solarroof.Report) {
	fmt.Fprintf(w, "%s %s\n", styleTitle.Render("Panels"),
		styleDim.Render(fmt.Sprintf("%g×%g mm, %g W", spec.Width, spec.Length, spec.Power)))
	for _, fr := range rep.Faces {
		fmt.Fprintln(w)
		printFace(w, fr)
	}

	t := rep.Total
	fmt.Fprintln(w)
	fmt.Fprintln(w, styleTitle.Render("Total"))
	fmt.Fprintf(w, "  panels    %s\n", styleNumber.Render(fmt.Sprint(t.PanelCount)))
	fmt.Fprintf(w, "  power     %s kW\n", styleNumber.Render(fmt.Sprintf("%.2f", t.SystemPowerKW)))
	fmt.Fprintf(w, "  annual    %s kWh\n", styleNumber.Render(fmt.Sprintf("%.0f", t.AnnualKWh)))
	fmt.Fprintf(w, "  daily     %s kWh\n", styleNumber.Render(fmt.Sprintf("%.2f", t.DailyKWh)))
	if rep.Chimneys > 0 {
		fmt.Fprintf(w, "  chimneys  %d %s\n", rep.Chimneys, styleDim.Render(fmt.Sprintf("(factor %.3f)", t.ChimneyFactor)))
	}
}

func printFace(w io.Writer, fr solarroof.FaceReport) {
	l, y := fr.Layout, fr.Yield
	orient := "flat"
	if !math.IsNaN(fr.Azimuth) {
		orient = fmt.Sprintf("pitch %.1f°, azimuth %.0f°", fr.Pitch, fr.Azimuth)
	}
	fmt.Fprintf(w, "%s %s\n", styleTitle.Render(string(fr.Face)),
		styleDim.Render(fmt.Sprintf("%s, %s, %.1f m²", l.Region.Kind, orient, fr.Area)))

	count := styleNumber.Render(fmt.Sprint(l.Count()))
	if l.Empty != solarroof.NotEmpty {
		count += " " + styleWarn.Render(l.Empty.String())
	}
	fmt.Fprintf(w, "  panels    %s", count)
	if l.Skipped > 0 {
		fmt.Fprint(w, styleDim.Render(fmt.Sprintf(" (%d blocked by obstacles)", l.Skipped)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  power     %s kW\n", styleNumber.Render(fmt.Sprintf("%.2f", y.SystemPowerKW)))
	fmt.Fprintf(w, "  annual    %s kWh %s\n", styleNumber.Render(fmt.Sprintf("%.0f", y.AnnualKWh)),
		styleDim.Render(fmt.Sprintf("(%s model, angle %.2f, orientation %.2f)", y.Model, y.AngleFactor, y.OrientationFactor)))
	if y.Model == solarroof.FlatModel {
		s := y.Seasonal
		fmt.Fprintf(w, "  seasons   %s\n", styleDim.Render(fmt.Sprintf("winter %.0f, spring %.0f, summer %.0f, fall %.0f kWh", s.Winter, s.Spring, s.Summer, s.Fall)))
	}
	if fr.ClearSky != nil {
		var sum float64
		for _, m := range fr.ClearSky {
			sum += m
		}
		fmt.Fprintf(w, "  clear sky %s kWh/m² %s\n", styleNumber.Render(fmt.Sprintf("%.0f", sum)),
			styleDim.Render(fmt.Sprintf("(June %.0f, December %.0f)", fr.ClearSky[5], fr.ClearSky[11])))
	}
}
