package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/gradbridge/internal/bridge"
	"github.com/born-ml/gradbridge/internal/casefile"
	"github.com/born-ml/gradbridge/internal/numeric"
)

// VJPReport is the output of the vjp command.
type VJPReport struct {
	Case       string        `json:"case"`
	Result     any           `json:"result"`
	GradOutput any           `json:"grad_output"`
	Gradients  []ArgGradient `json:"gradients"`
	values     []numeric.Value
	result     numeric.Value
	gradOutput numeric.Value
}

// ArgGradient is the gradient of one argument.
type ArgGradient struct {
	Index int   `json:"index"`
	Shape []int `json:"shape"`
	Value any   `json:"value"`
}

func (r *VJPReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "case: %s\n", r.Case)
	fmt.Fprintf(&sb, "result: %v\n", r.result)
	fmt.Fprintf(&sb, "grad_output: %v\n", r.gradOutput)
	sb.WriteString("gradients:")
	for i, g := range r.values {
		fmt.Fprintf(&sb, "\n  arg %d: %v", i, g)
	}
	return sb.String()
}

// NewVJPCommand creates the vjp command.
func NewVJPCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vjp <case>",
		Short: "Print argument gradients of a recorded case",
		Long: `Load a case file (a local path or gs://bucket/object), run it forward
through the bridge and backward with the case's grad_output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVJP(rootOpts, args[0], cmd)
		},
	}
}

func runVJP(opts *RootOptions, source string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()

	c, err := casefile.Load(ctx, source)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLoad, "failed to load case", err)
	}
	formatter.VerboseLog("Loaded case %q with %d argument(s)", c.Name, len(c.Args))

	b, err := bridge.New(c.Evaluator(), bridge.WithName(c.Name), bridge.WithLogger(klog.FromContext(ctx)))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBridge, "failed to create bridge", err)
	}

	call, err := b.Forward(valuesAsArgs(c.Args)...)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBridge, "forward failed", err)
	}
	formatter.VerboseLog("Forward call %s", call.ID())

	grads, err := call.Backward(c.GradOutput)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBridge, "backward failed", err)
	}

	report := &VJPReport{
		Case:       c.Name,
		Result:     call.Result().Nested(),
		GradOutput: c.GradOutput.Nested(),
		values:     grads,
		result:     call.Result(),
		gradOutput: c.GradOutput,
	}
	for i, g := range grads {
		report.Gradients = append(report.Gradients, ArgGradient{Index: i, Shape: shapeOf(g), Value: g.Nested()})
	}
	return formatter.Success(report)
}

func valuesAsArgs(values []numeric.Value) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func shapeOf(v numeric.Value) []int {
	if s := v.Shape(); s != nil {
		return s
	}
	return []int{}
}
