package cli

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/gradbridge/internal/autodiff"
	"github.com/born-ml/gradbridge/internal/backend/cpu"
	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/casefile"
	"github.com/born-ml/gradbridge/internal/numeric"
	"github.com/born-ml/gradbridge/internal/parallel"
	"github.com/born-ml/gradbridge/internal/tensor"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	Tolerance float64
	Jobs      int
}

// CheckSummary is the output of the check command, one report per case.
type CheckSummary struct {
	Passed bool           `json:"passed"`
	Cases  []*CheckReport `json:"cases"`
}

func (s *CheckSummary) String() string {
	parts := make([]string, len(s.Cases))
	for i, r := range s.Cases {
		parts[i] = r.String()
	}
	return strings.Join(parts, "\n\n")
}

// CheckReport is the output of the check command.
type CheckReport struct {
	Case      string     `json:"case"`
	Tolerance float64    `json:"tolerance"`
	Passed    bool       `json:"passed"`
	Arguments []ArgCheck `json:"arguments"`
}

// ArgCheck compares the tape gradient of one argument with the bridge VJP.
// Arguments that are sequences are passed as constants and not compared.
type ArgCheck struct {
	Index      int     `json:"index"`
	Trainable  bool    `json:"trainable"`
	MaxAbsDiff float64 `json:"max_abs_diff"`
}

func (r *CheckReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "case: %s\n", r.Case)
	for _, a := range r.Arguments {
		if !a.Trainable {
			fmt.Fprintf(&sb, "arg %d: constant\n", a.Index)
			continue
		}
		fmt.Fprintf(&sb, "arg %d: max |tape - bridge| = %g\n", a.Index, a.MaxAbsDiff)
	}
	if r.Passed {
		sb.WriteString("PASS")
	} else {
		fmt.Fprintf(&sb, "FAIL (tolerance %g)", r.Tolerance)
	}
	return sb.String()
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check <case>...",
		Short: "Compare tape gradients with the direct bridge VJP",
		Long: `Run a case twice: once directly through the bridge, and once as a custom
operation on the autodiff tape with every array argument as a host tensor.
Fails when any argument gradient differs by more than the tolerance.
Several cases are checked concurrently.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, opts, args, cmd)
		},
	}

	cmd.Flags().Float64VarP(&opts.Tolerance, "tolerance", "t", 1e-9, "maximum absolute difference per element")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "cases checked concurrently (0 = one per CPU)")

	return cmd
}

func runCheck(rootOpts *RootOptions, opts *CheckOptions, sources []string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	ctx := cmd.Context()
	logger := klog.FromContext(ctx)

	cases := make([]*casefile.Case, len(sources))
	for i, source := range sources {
		c, err := casefile.Load(ctx, source)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeLoad, "failed to load case", err)
		}
		cases[i] = c
	}

	reports, err := parallel.Map(len(cases), func(i int) (*CheckReport, error) {
		return checkCase(cases[i], opts.Tolerance, logger)
	}, parallel.WithWorkers(opts.Jobs))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBridge, "check failed", err)
	}

	summary := &CheckSummary{Passed: true, Cases: reports}
	for _, r := range reports {
		formatter.VerboseLog("Checked case %q: passed=%t", r.Case, r.Passed)
		summary.Passed = summary.Passed && r.Passed
	}

	if err := formatter.Success(summary); err != nil {
		return err
	}
	if !summary.Passed {
		return NewExitError(ExitFailure, "tape and bridge gradients disagree")
	}
	return nil
}

func checkCase(c *casefile.Case, tolerance float64, logger klog.Logger) (*CheckReport, error) {
	b, err := bridge.New(c.Evaluator(), bridge.WithName(c.Name), bridge.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	direct, err := directGradients(b, c)
	if err != nil {
		return nil, fmt.Errorf("case %q: direct backward: %w", c.Name, err)
	}
	taped, err := tapeGradients(b, c)
	if err != nil {
		return nil, fmt.Errorf("case %q: tape backward: %w", c.Name, err)
	}

	report := &CheckReport{Case: c.Name, Tolerance: tolerance, Passed: true}
	for i := range c.Args {
		check := ArgCheck{Index: i}
		if g, ok := taped[i]; ok {
			check.Trainable = true
			check.MaxAbsDiff = maxAbsDiff(g, direct[i].Data())
			if check.MaxAbsDiff > tolerance {
				report.Passed = false
			}
		}
		report.Arguments = append(report.Arguments, check)
	}
	return report, nil
}

func directGradients(b *bridge.Bridge, c *casefile.Case) ([]numeric.Value, error) {
	call, err := b.Forward(valuesAsArgs(c.Args)...)
	if err != nil {
		return nil, err
	}
	return call.Backward(c.GradOutput)
}

// tapeGradients records the case as one custom op and returns the gradient
// of every argument that was passed as a host tensor, keyed by position.
func tapeGradients(b *bridge.Bridge, c *casefile.Case) (map[int][]float64, error) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	args := make([]any, len(c.Args))
	inputs := make(map[int]*tensor.RawTensor)
	for i, v := range c.Args {
		if v.Kind() == numeric.SequenceKind {
			args[i] = v
			continue
		}
		raw, err := tensor.FromFloat64s(v.Data(), tensor.Shape(shapeOf(v)), tensor.Float64, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = raw
		inputs[i] = raw
	}

	out, err := bridge.ApplyTensor(b, backend, args...)
	if err != nil {
		return nil, err
	}
	seed, err := tensor.FromFloat64s(c.GradOutput.Data(), out.Shape(), tensor.Float64, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("grad_output: %w", err)
	}
	grads, err := autodiff.BackwardWithGrad(out, seed, backend)
	if err != nil {
		return nil, err
	}

	taped := make(map[int][]float64, len(inputs))
	for i, raw := range inputs {
		if g, ok := grads[raw]; ok {
			taped[i] = g.Float64s()
		} else {
			taped[i] = make([]float64, raw.NumElements())
		}
	}
	return taped, nil
}

func maxAbsDiff(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var m float64
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}
