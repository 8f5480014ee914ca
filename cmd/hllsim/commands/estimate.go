package commands

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/hllsim/internal/config"
	"github.com/Sumatoshi-tech/hllsim/pkg/alg/hll"
	"github.com/Sumatoshi-tech/hllsim/pkg/safeconv"
)

// maxTokenSize bounds a single input line.
const maxTokenSize = 1 << 20

const (
	estimateFormatText = "text"
	estimateFormatJSON = "json"
)

// ErrUnknownEstimateFormat is returned for an --format other than text or json.
var ErrUnknownEstimateFormat = errors.New("unknown estimate format")

// EstimateResult is the outcome of the estimate command.
type EstimateResult struct {
	Precision int     `json:"precision"`
	Registers int     `json:"registers"`
	Tokens    int     `json:"tokens"`
	Exact     int     `json:"exact,omitempty"`
	Basic     float64 `json:"basic"`
	Corrected float64 `json:"corrected"`
}

// EstimateCommand holds flags for the estimate command.
type EstimateCommand struct {
	precision int
	seed      uint64
	format    string
	noExact   bool
}

// NewEstimateCommand creates the estimate command.
func NewEstimateCommand() *cobra.Command {
	ec := &EstimateCommand{}

	cmd := &cobra.Command{
		Use:   "estimate [file]",
		Short: "Estimate the distinct lines of a file or stdin",
		Long: `Read newline-separated tokens from a file, or stdin when no file is given,
and print the basic and corrected HyperLogLog estimates of their distinct
count next to the exact count. Empty lines are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: ec.run,
	}

	cmd.Flags().IntVarP(&ec.precision, "precision", "b", config.DefaultPrecision, "Register index bits B (4-16)")
	cmd.Flags().Uint64Var(&ec.seed, "seed", 0, "Hash seed")
	cmd.Flags().StringVar(&ec.format, "format", estimateFormatText, "Output format: text, json")
	cmd.Flags().BoolVar(&ec.noExact, "no-exact", false, "Skip the exact count (constant memory)")

	return cmd
}

func (ec *EstimateCommand) run(cmd *cobra.Command, args []string) error {
	if ec.format != estimateFormatText && ec.format != estimateFormatJSON {
		return fmt.Errorf("%w: %q", ErrUnknownEstimateFormat, ec.format)
	}

	in := cmd.InOrStdin()

	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()

		in = f
	}

	res, err := ec.estimate(in)
	if err != nil {
		return err
	}

	return ec.print(cmd.OutOrStdout(), res)
}

func (ec *EstimateCommand) estimate(in io.Reader) (*EstimateResult, error) {
	if ec.precision < hll.MinPrecision || ec.precision > hll.MaxPrecision {
		return nil, hll.ErrPrecisionOutOfRange
	}

	precision := safeconv.MustIntToUint8(ec.precision)

	basic, err := hll.New(hll.Basic, precision, ec.seed)
	if err != nil {
		return nil, err
	}

	corrected, err := hll.New(hll.Corrected, precision, ec.seed)
	if err != nil {
		return nil, err
	}

	var exact map[string]struct{}
	if !ec.noExact {
		exact = make(map[string]struct{})
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxTokenSize)

	tokens := 0

	for scanner.Scan() {
		token := scanner.Bytes()
		if len(token) == 0 {
			continue
		}

		tokens++

		basic.Add(token)
		corrected.Add(token)

		if exact != nil {
			exact[string(token)] = struct{}{}
		}
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read tokens: %w", err)
	}

	return &EstimateResult{
		Precision: ec.precision,
		Registers: basic.RegisterCount(),
		Tokens:    tokens,
		Exact:     len(exact),
		Basic:     basic.Estimate(),
		Corrected: corrected.Estimate(),
	}, nil
}

func (ec *EstimateCommand) print(w io.Writer, res *EstimateResult) error {
	if ec.format == estimateFormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(res)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}

		return nil
	}

	lines := []string{
		fmt.Sprintf("B=%d m=%s", res.Precision, humanize.Comma(int64(res.Registers))),
		"tokens:    " + humanize.Comma(int64(res.Tokens)),
	}

	if !ec.noExact {
		lines = append(lines, "exact:     "+humanize.Comma(int64(res.Exact)))
	}

	lines = append(lines,
		fmt.Sprintf("basic:     %.1f", res.Basic),
		fmt.Sprintf("corrected: %.1f", res.Corrected),
	)

	for _, line := range lines {
		_, err := fmt.Fprintln(w, line)
		if err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}

	return nil
}
