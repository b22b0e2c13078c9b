package identity

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-pushclient/internal/core/storage/engine"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Engine engine.InternalEngine
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Store *Store
}

// ProvideStore 提供身份存储
func ProvideStore(input ModuleInput) (ModuleOutput, error) {
	s, err := NewStore(input.Engine)
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Store: s}, nil
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideStore),
	)
}
