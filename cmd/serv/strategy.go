package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dushixiang/prism-studio/pkg/strategy"
	"github.com/dushixiang/prism-studio/pkg/studio"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

type remoteOptions struct {
	server   string
	token    string
	username string
	password string
	lang     string
}

// client 按 flag 优先、环境变量兜底创建客户端，未提供 token 时用账号密码登录
func (o *remoteOptions) client(ctx context.Context) (*studio.Client, error) {
	server := firstNonEmpty(o.server, os.Getenv("STUDIO_SERVER"), "http://127.0.0.1:8080")
	token := firstNonEmpty(o.token, os.Getenv("STUDIO_TOKEN"))

	c := studio.NewClient(server, studio.WithToken(token))
	if token != "" {
		return c, nil
	}
	username := firstNonEmpty(o.username, os.Getenv("STUDIO_USERNAME"))
	password := firstNonEmpty(o.password, os.Getenv("STUDIO_PASSWORD"))
	if username == "" || password == "" {
		return nil, errors.New("missing credentials: set --token or --username/--password (STUDIO_TOKEN / STUDIO_USERNAME / STUDIO_PASSWORD)")
	}
	if _, err := c.Login(ctx, username, password); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return c, nil
}

func (o *remoteOptions) context() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	if o.lang != "" {
		ctx = studio.WithLocale(ctx, o.lang)
	}
	return ctx, cancel
}

func (o *remoteOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.server, "server", "", "服务地址，默认读取 STUDIO_SERVER")
	flags.StringVar(&o.token, "token", "", "访问令牌，默认读取 STUDIO_TOKEN")
	flags.StringVarP(&o.username, "username", "u", "", "用户名")
	flags.StringVarP(&o.password, "password", "p", "", "密码")
	flags.StringVar(&o.lang, "lang", "", "请求语言 en/zh/es")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newStrategyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "策略文件校验与导入导出",
	}
	cmd.AddCommand(
		newValidateCmd(),
		newListCmd(),
		newExportCmd(),
		newImportCmd(),
	)
	return cmd
}

// newValidateCmd 离线校验导出文件或裸配置
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "校验策略文件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, name, err := loadStrategyFile(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := strategy.Validate(cfg); err != nil {
				fields := strategy.FieldErrors(err)
				if len(fields) == 0 {
					return err
				}
				t := table.NewWriter()
				t.SetOutputMirror(out)
				t.AppendHeader(table.Row{"Field", "Rule", "Param"})
				for _, fe := range fields {
					t.AppendRow(table.Row{fe.Field, fe.Tag, fe.Param})
				}
				t.Render()
				return fmt.Errorf("%s: %d invalid field(s)", args[0], len(fields))
			}
			_, _ = fmt.Fprintf(out, "%s: ok (%s, %d static coins, max %d positions)\n",
				firstNonEmpty(name, filepath.Base(args[0])), cfg.CoinSource.SourceType,
				len(cfg.CoinSource.StaticCoins), cfg.RiskControl.MaxPositions)
			return nil
		},
	}
}

// loadStrategyFile 先按导出文档解析，不是导出文档时按裸配置解析
func loadStrategyFile(data []byte) (strategy.Config, string, error) {
	doc, err := strategy.ParseImport(data)
	if err == nil {
		return doc.Config, doc.Name, nil
	}
	cfg, loadErr := strategy.Load(data)
	if loadErr != nil {
		return strategy.Config{}, "", err
	}
	return cfg, "", nil
}

func newListCmd() *cobra.Command {
	var opts remoteOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "列出服务端策略",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()
			c, err := opts.client(ctx)
			if err != nil {
				return err
			}
			items, err := c.ListStrategies(ctx)
			if err != nil {
				return err
			}
			renderStrategies(cmd.OutOrStdout(), items)
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}

func renderStrategies(w io.Writer, items []studio.Strategy) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Active", "Default", "Public", "Version", "Updated"})
	for _, s := range items {
		t.AppendRow(table.Row{
			s.ID, s.Name, mark(s.IsActive), mark(s.IsDefault), mark(s.IsPublic), s.Version,
			s.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d strategies", len(items))})
	t.Render()
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}

func newExportCmd() *cobra.Command {
	var opts remoteOptions
	var output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "导出策略为 JSON 文件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			ctx, cancel := opts.context()
			defer cancel()
			c, err := opts.client(ctx)
			if err != nil {
				return err
			}
			filename, data, err := c.ExportStrategy(ctx, args[0])
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = firstNonEmpty(filename, strategy.ExportFilename(args[0], time.Now()))
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			logger.Info("strategy exported", zap.String("id", args[0]), zap.String("file", output))
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "输出文件，- 表示标准输出")
	return cmd
}

func newImportCmd() *cobra.Command {
	var opts remoteOptions
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "导入策略文件，创建为新策略",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			defer logger.Sync()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			// 先在本地拒绝缺少 name 或 config 的文件
			if _, err := strategy.ParseImport(data); err != nil {
				return err
			}

			ctx, cancel := opts.context()
			defer cancel()
			c, err := opts.client(ctx)
			if err != nil {
				return err
			}
			created, err := c.ImportStrategy(ctx, data)
			if err != nil {
				var apiErr *studio.APIError
				if errors.As(err, &apiErr) {
					for field, msg := range apiErr.Fields {
						logger.Warn("invalid field", zap.String("field", field), zap.String("reason", msg))
					}
				}
				return err
			}
			logger.Info("strategy imported", zap.String("id", created.ID), zap.String("name", created.Name))
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}
