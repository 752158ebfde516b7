// cmd/server/main.go
package main

import (
	"log"

	"github.com/ashrithajanga/CineGen/internal/app"
	"github.com/ashrithajanga/CineGen/internal/config"
	"github.com/ashrithajanga/CineGen/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("创建目录失败: %v", err)
	}
	if err := app.InitLogger(cfg); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	a, err := app.New(cfg, utils.GetLogger())
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("服务器异常退出: %v", err)
	}
}
