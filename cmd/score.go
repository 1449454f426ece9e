package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/siteselect/internal/config"
	"github.com/sells-group/siteselect/internal/export"
	"github.com/sells-group/siteselect/internal/scorer"
	"github.com/sells-group/siteselect/internal/session"
	"github.com/sells-group/siteselect/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score tracts and select charging sites",
	Long:  "Loads the tract layer (and optionally existing chargers), scores every tract, selects sites and writes the requested exports.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := applyScoreFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		scCfg, err := scorer.ConfigFromSettings(cfg.Scoring, cfg.Constraints)
		if err != nil {
			return err
		}

		tbl, err := session.Load(ctx, cfg.Data)
		if err != nil {
			return err
		}

		sess := session.New(tbl)
		snap, err := sess.Rescore(ctx, scCfg, cfg.Selection.NSites, cfg.Selection.MinDistanceMi)
		if err != nil {
			return err
		}

		outs, err := scoreOutputs(cmd)
		if err != nil {
			return err
		}
		if err := writeOutputs(snap, outs); err != nil {
			return err
		}

		var runID string
		if save, _ := cmd.Flags().GetBool("save"); save {
			runID, err = saveRun(cmd, snap)
			if err != nil {
				return err
			}
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			return writeScoreJSON(cmd.OutOrStdout(), snap, runID)
		case "table", "":
			formatScoreSummary(cmd.OutOrStdout(), snap)
			if runID != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved run %s\n", runID)
			}
			return nil
		default:
			return eris.Errorf("unknown format %q (want table or json)", format)
		}
	},
}

func init() {
	f := scoreCmd.Flags()
	f.String("regions", "", "tract GeoJSON layer (overrides data.regions_path)")
	f.String("chargers", "", "existing charger shapefile or zip (overrides data.chargers_path)")
	f.String("profile", "", "YAML scoring profile (overrides scoring.profile_path)")
	f.Int("sites", 0, "number of sites to select (overrides selection.n_sites)")
	f.Float64("min-distance", 0, "minimum miles between selected sites (overrides selection.min_distance_mi)")
	f.Float64("min-trips", 0, "minimum person trips per tract (overrides constraints.min_person_trips)")
	f.Bool("only-rural", false, "keep only rural tracts")
	f.Bool("only-secondary-buffer", false, "keep only tracts within the secondary-network buffer")
	f.Bool("exclude-zero-headroom", false, "drop tracts with no feeder headroom")
	f.Bool("secondary-corridor", false, "score accessibility from the secondary corridor alone")
	f.Bool("legacy-ej", false, "drop the EJ-priority equity term for gated charging types")
	f.String("out", "", "write every scored tract as GeoJSON")
	f.String("selected-out", "", "write the selected sites as GeoJSON")
	f.String("csv", "", "write the selected sites as CSV")
	f.String("xlsx", "", "write scored tracts and selected sites as an XLSX workbook")
	f.Bool("save", false, "persist the run to the configured store")
	f.String("format", "table", "summary format: table or json")
	rootCmd.AddCommand(scoreCmd)
}

// applyScoreFlags overlays explicitly set flags onto c.
func applyScoreFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	var err error
	str := func(name string, dst *string) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetBool(name)
		}
	}

	str("regions", &c.Data.RegionsPath)
	str("chargers", &c.Data.ChargersPath)
	str("profile", &c.Scoring.ProfilePath)
	boolean("only-rural", &c.Constraints.OnlyRural)
	boolean("only-secondary-buffer", &c.Constraints.OnlyWithinSecondaryBuffer)
	boolean("exclude-zero-headroom", &c.Constraints.ExcludeZeroHeadroom)
	boolean("secondary-corridor", &c.Scoring.SecondaryCorridorMode)
	boolean("legacy-ej", &c.Scoring.LegacyEJGating)
	if err == nil && f.Changed("sites") {
		c.Selection.NSites, err = f.GetInt("sites")
	}
	if err == nil && f.Changed("min-distance") {
		c.Selection.MinDistanceMi, err = f.GetFloat64("min-distance")
	}
	if err == nil && f.Changed("min-trips") {
		var trips float64
		trips, err = f.GetFloat64("min-trips")
		c.Constraints.MinPersonTrips = &trips
	}
	return eris.Wrap(err, "score: read flags")
}

// outputPaths are the export destinations of a score run. Empty paths are
// skipped.
type outputPaths struct {
	Scored   string
	Selected string
	CSV      string
	XLSX     string
}

func scoreOutputs(cmd *cobra.Command) (outputPaths, error) {
	var (
		o   outputPaths
		err error
	)
	for name, dst := range map[string]*string{
		"out":          &o.Scored,
		"selected-out": &o.Selected,
		"csv":          &o.CSV,
		"xlsx":         &o.XLSX,
	} {
		if *dst, err = cmd.Flags().GetString(name); err != nil {
			return o, eris.Wrap(err, "score: read flags")
		}
	}
	return o, nil
}

func writeOutputs(snap *session.Snapshot, o outputPaths) error {
	scored := export.RegionRecords(snap.Result.Regions, snap.Selection.Sites)
	selected := export.SiteRecords(snap.Selection.Sites)

	if o.Scored != "" {
		if err := export.SaveGeoJSON(o.Scored, scored); err != nil {
			return err
		}
		zap.L().Info("wrote scored tracts", zap.String("path", o.Scored), zap.Int("features", len(scored)))
	}
	if o.Selected != "" {
		if err := export.SaveGeoJSON(o.Selected, selected); err != nil {
			return err
		}
		zap.L().Info("wrote selected sites", zap.String("path", o.Selected), zap.Int("features", len(selected)))
	}
	if o.CSV != "" {
		if err := export.SaveCSV(o.CSV, selected); err != nil {
			return err
		}
		zap.L().Info("wrote csv", zap.String("path", o.CSV))
	}
	if o.XLSX != "" {
		if err := export.SaveXLSX(o.XLSX, scored, selected); err != nil {
			return err
		}
		zap.L().Info("wrote workbook", zap.String("path", o.XLSX))
	}
	return nil
}

func saveRun(cmd *cobra.Command, snap *session.Snapshot) (string, error) {
	ctx := cmd.Context()
	st, err := initStore(ctx)
	if err != nil {
		return "", err
	}
	defer st.Close() //nolint:errcheck

	run, sites, err := store.NewRun(snap.Result, snap.Selection)
	if err != nil {
		return "", err
	}
	if err := st.SaveRun(ctx, run, sites); err != nil {
		return "", eris.Wrap(err, "score: save run")
	}
	return run.ID, nil
}

// scoreReport is the JSON form of a score run.
type scoreReport struct {
	RunID       string                  `json:"run_id,omitempty"`
	Summary     scorer.Summary          `json:"summary"`
	Constraints []scorer.ConstraintStep `json:"constraints"`
	Plan        scorer.Plan             `json:"plan"`
	Sites       []siteReport            `json:"sites"`
	Shortfall   bool                    `json:"shortfall"`
	Homogeneous bool                    `json:"homogeneous"`
}

type siteReport struct {
	Rank           int     `json:"rank"`
	GEOID          string  `json:"geoid"`
	ChargingType   string  `json:"charging_type"`
	CompositeScore float64 `json:"composite_score"`
	Lon            float64 `json:"lon"`
	Lat            float64 `json:"lat"`
}

func writeScoreJSON(out io.Writer, snap *session.Snapshot, runID string) error {
	rep := scoreReport{
		RunID:       runID,
		Summary:     snap.Result.Summary,
		Constraints: snap.Result.Constraints,
		Plan:        snap.Result.Plan,
		Sites:       make([]siteReport, len(snap.Selection.Sites)),
		Shortfall:   snap.Selection.Shortfall,
		Homogeneous: snap.Selection.Homogeneous,
	}
	for i, s := range snap.Selection.Sites {
		rep.Sites[i] = siteReport{
			Rank:           s.Rank,
			GEOID:          s.GEOID,
			ChargingType:   s.ChargingType,
			CompositeScore: s.CompositeScore,
		}
		if len(s.Centroid) >= 2 {
			rep.Sites[i].Lon, rep.Sites[i].Lat = s.Centroid[0], s.Centroid[1]
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(rep), "score: encode report")
}

// formatScoreSummary writes the run summary and the selected sites to out.
func formatScoreSummary(out io.Writer, snap *session.Snapshot) {
	p := message.NewPrinter(language.English)
	sum := snap.Result.Summary

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = p.Fprintf(w, "Tracts:\t%d\n", sum.Total)
	_, _ = p.Fprintf(w, "Feasible:\t%d\n", sum.Feasible)
	_, _ = p.Fprintf(w, "Avg composite (feasible):\t%.2f\n", sum.AvgCompositeFeasible)
	for _, step := range snap.Result.Constraints {
		if step.Applied {
			_, _ = p.Fprintf(w, "  after %s:\t%d\n", step.Name, step.Pass)
		}
	}
	_, _ = p.Fprintf(w, "Selected:\t%d of %d\n", len(snap.Selection.Sites), snap.Selection.Requested)
	_ = w.Flush()

	if snap.Selection.Shortfall {
		_, _ = fmt.Fprintln(out, "Warning: fewer feasible, well-separated tracts than requested.")
	}
	if snap.Selection.Homogeneous {
		_, _ = fmt.Fprintln(out, "Warning: every selected site has the same charging type.")
	}
	if len(snap.Selection.Sites) == 0 {
		return
	}

	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tGEOID\tTYPE\tCOMPOSITE\tDEMAND\tINFRA\tACCESS\tEQUITY")
	_, _ = fmt.Fprintln(w, "----\t-----\t----\t---------\t------\t-----\t------\t------")
	for _, s := range snap.Selection.Sites {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			s.Rank,
			s.GEOID,
			s.ChargingType,
			s.CompositeScore,
			s.DemandScore,
			s.InfrastructureScore,
			s.AccessibilityScore,
			s.EquityScore,
		)
	}
	_ = w.Flush()
}
