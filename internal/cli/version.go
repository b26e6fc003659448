package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/pdflow/internal/domain"
	"github.com/shaiso/pdflow/internal/engine"
	"github.com/shaiso/pdflow/internal/launch"
	"github.com/shaiso/pdflow/internal/manifest"
	"github.com/shaiso/pdflow/internal/tools"
)

// ToolVersion — версия инструмента flow.
type ToolVersion struct {
	Tool    string `json:"tool"`
	Exe     string `json:"exe,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewVersionCmd создаёт команду вывода версий.
func NewVersionCmd(version string, outputFn func() *Output) *cobra.Command {
	var flowFile string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print pdflow version and, with --flow, versions of the flow tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if flowFile == "" {
				if out.jsonMode {
					out.JSON(map[string]string{"version": version})
					return nil
				}
				fmt.Fprintln(out.w, "pdflow", version)
				return nil
			}

			flow, err := engine.LoadFlowFile(flowFile)
			if err != nil {
				return err
			}

			prober := launch.NewExecLauncher(launch.ExecConfig{Logger: slog.Default()})
			versions := ProbeVersions(cmd.Context(), flow, tools.NewRegistry(tools.CommandFactory), prober)

			headers := []string{"TOOL", "EXE", "VERSION"}
			rows := make([][]string, len(versions))
			for i, v := range versions {
				ver := v.Version
				if v.Error != "" {
					ver = "error: " + v.Error
				}
				rows[i] = []string{v.Tool, orDash(v.Exe), orDash(ver)}
			}
			out.Print(headers, rows, versions)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowFile, "flow", "", "Flow file whose tools to probe")

	return cmd
}

// ProbeVersions запрашивает версию каждого инструмента flow один раз.
// Настройки берутся из первого узла инструмента; manifest не сохраняется.
func ProbeVersions(ctx context.Context, flow *domain.FlowSpec, registry *tools.Registry, prober launch.VersionProber) []ToolVersion {
	store := manifest.New()
	seen := make(map[string]bool)
	var versions []ToolVersion

	for i := range flow.Nodes {
		def := &flow.Nodes[i]
		if def.IsAggregator() || seen[def.Tool] {
			continue
		}
		seen[def.Tool] = true

		tv := ToolVersion{Tool: def.Tool}
		versions = append(versions, tv)
		cur := &versions[len(versions)-1]

		adapter, err := registry.Get(def.Tool)
		if err != nil {
			cur.Error = err.Error()
			continue
		}

		cfg := tools.NewNodeConfig(store, "version", def, "", 1)
		if err := adapter.Setup(cfg); err != nil {
			cur.Error = err.Error()
			continue
		}
		cur.Exe = cfg.Exe()

		vswitch := cfg.VersionSwitch()
		if len(vswitch) == 0 {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		raw, err := prober.Probe(probeCtx, cfg.Exe(), vswitch)
		cancel()
		if err != nil {
			cur.Error = err.Error()
			continue
		}

		if vp, ok := adapter.(tools.VersionParser); ok {
			cur.Version = vp.ParseVersionFor(cfg, raw)
		} else {
			cur.Version = adapter.ParseVersion(raw)
		}
	}
	return versions
}
