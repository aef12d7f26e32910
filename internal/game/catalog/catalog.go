// Package catalog 在启动时显式注册所有游戏。
package catalog

import (
	"arcade-rooms/internal/game"
	"arcade-rooms/internal/game/matching"
	"arcade-rooms/internal/game/recall"
)

// NewRegistry 构建包含全部内置游戏的注册表。新增游戏时在这里加一行。
func NewRegistry() *game.Registry {
	r := game.NewRegistry()
	r.MustRegister(matching.New())
	r.MustRegister(recall.New())
	return r
}
