package main

import (
	"log/slog"

	"github.com/KimMachineGun/automemlimit/memlimit"

	"github.com/clickaudit/clickaudit/cmd"
)

func main() {
	// Merged groupings scale with query cardinality, so respect the
	// container's memory limit instead of trusting the default heap goal.
	if _, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			),
		),
	); err != nil {
		slog.Debug("memlimit.not_applied", "err", err)
	}

	cmd.Execute()
}
