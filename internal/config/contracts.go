package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ContractsConfig launchpad contract address book
type ContractsConfig struct {
	TokenManager string `yaml:"tokenManager" json:"token_manager"`
	Router       string `yaml:"router" json:"router"`
	WETH         string `yaml:"weth" json:"weth"`
	Staking      string `yaml:"staking" json:"staking"`
	Multicall3   string `yaml:"multicall3" json:"multicall3"`
}

// ContractAddresses parsed form of ContractsConfig
type ContractAddresses struct {
	TokenManager common.Address
	Router       common.Address
	WETH         common.Address
	Staking      common.Address
	Multicall3   common.Address
}

// DefaultContracts Plasma deployment
func DefaultContracts() ContractsConfig {
	return ContractsConfig{
		TokenManager: "0x68B1D87F95878fE05B998F19b66F4baba5De1aed",
		Router:       "0xfc9869eF6E04e8dcF09234Ad0bC48a6f78a493cC",
		WETH:         "0x6100E367285b01F48D07953803A2d8dCA5D19873",
		Staking:      "0x959922bE3CAee4b8Cd9a407cc3ac1C251C2007B1",
		Multicall3:   "0xcA11bde05977b3631167028862bE2a173976CA11",
	}
}

// Validate every configured address must be a non-zero hex address
func (c ContractsConfig) Validate() error {
	for name, v := range map[string]string{
		"tokenManager": c.TokenManager,
		"router":       c.Router,
		"weth":         c.WETH,
		"staking":      c.Staking,
		"multicall3":   c.Multicall3,
	} {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("contracts.%s is not a valid address: %q", name, v)
		}
		if common.HexToAddress(v) == (common.Address{}) {
			return fmt.Errorf("contracts.%s must not be the zero address", name)
		}
	}
	return nil
}

// Addresses parses the address book. Call Validate first.
func (c ContractsConfig) Addresses() ContractAddresses {
	return ContractAddresses{
		TokenManager: common.HexToAddress(c.TokenManager),
		Router:       common.HexToAddress(c.Router),
		WETH:         common.HexToAddress(c.WETH),
		Staking:      common.HexToAddress(c.Staking),
		Multicall3:   common.HexToAddress(c.Multicall3),
	}
}
