package main

import (
	"log"

	"github.com/dushixiang/prism-studio/internal"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "prism-studio",
	Short: "Prism Strategy Studio - AI 交易策略工作室",
	Long:  ``,
	RunE: func(cmd *cobra.Command, args []string) error {
		return internal.Run(configFile)
	},
}

func init() {
	// 全局配置文件标志
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "配置文件路径")
	rootCmd.AddCommand(newStrategyCmd())
}

func main() {
	// .env 不存在时直接使用系统环境变量
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
