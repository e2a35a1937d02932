package game

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/game/slot"
	"gopkg.in/yaml.v3"
)

// Definition 进程内唯一的游戏定义，启动时加载后不再修改
type Definition struct {
	StudioID string           `json:"studio_id" yaml:"studio_id" validate:"required"`
	GameID   string           `json:"game_id" yaml:"game_id" validate:"required"`
	Config   *slot.SlotConfig `json:"config" yaml:"config" validate:"required"`
}

// LoadDefinition 从YAML文件加载游戏定义
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "读取游戏定义失败: %s", path)
	}
	return ParseDefinition(data)
}

// ParseDefinition 解析YAML格式的游戏定义
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "解析游戏定义失败")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// DefaultDefinition 使用内置老虎机配置
func DefaultDefinition(studioID, gameID string) *Definition {
	return &Definition{
		StudioID: studioID,
		GameID:   gameID,
		Config:   slot.GetDefaultConfig(),
	}
}

// Validate 校验游戏定义
func (d *Definition) Validate() error {
	if d == nil {
		return errors.New(errors.ErrInvalidGameConfig, "游戏定义为空")
	}
	if err := validator.New().Struct(d); err != nil {
		return errors.Wrap(err, errors.ErrInvalidGameConfig)
	}
	return slot.ValidateConfig(d.Config)
}

// Matches 是否为该工作室的该游戏
func (d *Definition) Matches(studioID, gameID string) bool {
	return d.StudioID == studioID && d.GameID == gameID
}
