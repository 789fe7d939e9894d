package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/paiban/shiftopt/internal/config"
	"github.com/paiban/shiftopt/internal/service"
	"github.com/paiban/shiftopt/pkg/errors"
	"github.com/paiban/shiftopt/pkg/logger"
	"github.com/paiban/shiftopt/pkg/scheduler/optimizer"
	"github.com/paiban/shiftopt/pkg/validator"
)

// 退出码
const (
	exitCovered = 0 // 全部需求人次已填满 / 校验通过
	exitPartial = 1 // 部分覆盖 / 存在硬冲突
	exitError   = 2 // 输入、配置或运行错误
)

// cli 命令行运行环境，测试中替换输入输出
type cli struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	exitCode int
}

// execute 运行命令并返回退出码，错误以 JSON 写到 errOut
func execute(ctx context.Context, c *cli, args []string) int {
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	if err := root.ExecuteContext(ctx); err != nil {
		writeError(c.errOut, err)
		return exitError
	}
	return c.exitCode
}

func newRootCmd(c *cli) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "shiftopt",
		Short:         "排班优化命令行工具",
		Long:          "基于模拟退火的排班优化：读取员工与班次，输出分配方案与覆盖率、公平性统计。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// 标准输出留给结果，日志走标准错误
			logger.Init(logger.Config{
				Level:      logLevel,
				Format:     "console",
				Output:     "stderr",
				TimeFormat: time.RFC3339,
			})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "日志级别 (debug/info/warn/error/off)")

	root.AddCommand(newOptimizeCmd(c))
	root.AddCommand(newValidateCmd(c))
	return root
}

func newOptimizeCmd(c *cli) *cobra.Command {
	var (
		fromStdin     bool
		toStdout      bool
		timeLimit     float64
		seed          uint64
		maxIterations int
		runs          int
	)

	cmd := &cobra.Command{
		Use:   "optimize [input] [output]",
		Short: "生成排班方案",
		Long: `读取 JSON 输入（employees、shifts、可选 prior_assignments 与 options）并输出优化结果。
使用 --stdin 时不接受输入文件参数，唯一的位置参数视为输出文件。
退出码：0 全部覆盖，1 部分覆盖，2 出错。`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos := args
			inputPath := ""
			if !fromStdin {
				if len(pos) == 0 {
					return errors.New(errors.CodeInvalidInput, "需要输入文件，或使用 --stdin")
				}
				inputPath, pos = pos[0], pos[1:]
			}
			if len(pos) > 1 {
				return errors.New(errors.CodeInvalidInput, "使用 --stdin 时只接受一个输出文件参数")
			}
			outputPath := ""
			if len(pos) == 1 {
				outputPath = pos[0]
			}

			var req service.OptimizeRequest
			if err := readJSON(c.in, inputPath, &req); err != nil {
				return err
			}
			if req.Options == nil {
				req.Options = &service.Options{}
			}
			flags := cmd.Flags()
			if flags.Changed("seed") {
				req.Options.Seed = &seed
			}
			if flags.Changed("time-limit") {
				ms := int64(timeLimit * 1000)
				req.Options.TimeoutMs = &ms
			}
			if flags.Changed("max-iterations") {
				req.Options.MaxIterations = &maxIterations
			}
			if flags.Changed("runs") {
				req.Options.Runs = runs
			}

			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.Optimize(cmd.Context(), &req)
			if err != nil {
				return err
			}

			if outputPath != "" {
				if err := writeJSONFile(outputPath, res); err != nil {
					return err
				}
			}
			if toStdout || outputPath == "" {
				if err := writeJSON(c.out, res); err != nil {
					return err
				}
			}

			c.exitCode = exitCovered
			if res.Statistics == nil || !res.Statistics.FullyCovered() {
				c.exitCode = exitPartial
			}
			logger.Get().Info().
				Str("terminal_state", string(res.TerminalState)).
				Int("uncovered_shifts", len(res.UncoveredShifts)).
				Msg("排班完成")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&fromStdin, "stdin", false, "从标准输入读取")
	flags.BoolVar(&toStdout, "stdout", false, "结果写到标准输出（指定输出文件时同时写出）")
	flags.Float64Var(&timeLimit, "time-limit", 0, "时间预算（秒），0 表示不限时")
	flags.Uint64Var(&seed, "seed", 0, "随机种子，指定后结果可复现")
	flags.IntVar(&maxIterations, "max-iterations", 0, "最大迭代次数，0 只做贪心构造")
	flags.IntVar(&runs, "runs", 1, "多起点并行次数")
	return cmd
}

// validationReport validate 命令的输出
type validationReport struct {
	Valid     bool                 `json:"valid"`
	Errors    int                  `json:"errors"`
	Warnings  int                  `json:"warnings"`
	Conflicts []validator.Conflict `json:"conflicts"`
}

func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [input]",
		Short: "校验排班方案",
		Long: `读取 JSON 输入（employees、shifts、assignments）并列出全部冲突。
省略输入文件时从标准输入读取。退出码：0 无硬冲突，1 存在硬冲突，2 出错。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath := ""
			if len(args) == 1 {
				inputPath = args[0]
			}

			var req service.CheckRequest
			if err := readJSON(c.in, inputPath, &req); err != nil {
				return err
			}

			svc, err := newService()
			if err != nil {
				return err
			}
			defer svc.Close()

			conflicts, err := svc.Validate(cmd.Context(), &req)
			if err != nil {
				return err
			}

			rep := validationReport{Conflicts: conflicts}
			for _, cf := range conflicts {
				if cf.Severity == validator.SeverityError {
					rep.Errors++
				} else {
					rep.Warnings++
				}
			}
			rep.Valid = rep.Errors == 0
			if err := writeJSON(c.out, rep); err != nil {
				return err
			}

			c.exitCode = exitCovered
			if !rep.Valid {
				c.exitCode = exitPartial
			}
			return nil
		},
	}
}

func newService() (*service.ScheduleService, error) {
	return service.NewScheduleService(config.OptimizerConfig{
		Engine:           optimizer.DefaultConfig(),
		Workers:          4,
		QueueSize:        1,
		PortfolioRuns:    1,
		MaxPortfolioRuns: 64,
	}, service.Deps{})
}

func readJSON(stdin io.Reader, path string, v interface{}) error {
	r := stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, errors.CodeInvalidInput, fmt.Sprintf("无法打开输入文件 %s", path))
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "输入不是合法的 JSON").WithDetails(err.Error())
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, fmt.Sprintf("无法创建输出文件 %s", path))
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		return errors.Wrap(err, errors.CodeInternal, "写入输出文件失败")
	}
	return f.Close()
}

// writeError 以 JSON 输出错误。命令行参数错误等非 AppError 视为输入错误
func writeError(w io.Writer, err error) {
	appErr := errors.From(err)
	if errors.GetCode(err) == errors.CodeUnknown && !errors.IsValidation(err) {
		appErr = errors.New(errors.CodeInvalidInput, err.Error())
	}
	body := map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	json.NewEncoder(w).Encode(body)
}
