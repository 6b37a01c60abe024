// Package contracts holds the launchpad contract interfaces and the codec that
// turns call payloads into typed values.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const tokenManagerABIJSON = `[
 {"type":"function","name":"allTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"tokens","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"uri","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"tokensInfo","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[
  {"name":"base","type":"address"},
  {"name":"quote","type":"address"},
  {"name":"reserve0","type":"uint256"},
  {"name":"reserve1","type":"uint256"},
  {"name":"vReserve0","type":"uint256"},
  {"name":"vReserve1","type":"uint256"},
  {"name":"maxOffers","type":"uint256"},
  {"name":"totalSupply","type":"uint256"},
  {"name":"lastPrice","type":"uint256"},
  {"name":"target","type":"uint256"},
  {"name":"creator","type":"address"},
  {"name":"launched","type":"bool"}]},
 {"type":"function","name":"tryBuy","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"amountIn","type":"uint256"}],"outputs":[{"name":"amountOut","type":"uint256"},{"name":"refund","type":"uint256"}]},
 {"type":"function","name":"trySell","stateMutability":"view","inputs":[{"name":"token","type":"address"},{"name":"amountIn","type":"uint256"}],"outputs":[{"name":"amountOut","type":"uint256"}]},
 {"type":"function","name":"buyToken","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"sellToken","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"createToken","stateMutability":"nonpayable","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"uri","type":"string"},{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"createTokenAndBuy","stateMutability":"payable","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"},{"name":"uri","type":"string"},{"name":"salt","type":"bytes32"},{"name":"preBuyAmount","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"predictTokenAddress","stateMutability":"view","inputs":[{"name":"salt","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"type":"function","name":"swapExactTokensForETH","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

const routerABIJSON = `[
 {"type":"function","name":"getAmountsOut","stateMutability":"view","inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"type":"function","name":"swapExactETHForTokens","stateMutability":"payable","inputs":[{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
 {"type":"function","name":"swapExactTokensForETH","stateMutability":"nonpayable","inputs":[{"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},{"name":"to","type":"address"},{"name":"deadline","type":"uint256"}],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

const stakingABIJSON = `[
 {"type":"function","name":"getStakingInfo","stateMutability":"view","inputs":[],"outputs":[{"name":"startTime","type":"uint256"},{"name":"endTime","type":"uint256"},{"name":"totalStaked","type":"uint256"},{"name":"participants","type":"uint256"}]},
 {"type":"function","name":"getUserStakeInfo","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"staked","type":"uint256"},{"name":"withdrawn","type":"uint256"},{"name":"stakeTime","type":"uint256"},{"name":"hasWithdrawn","type":"bool"}]},
 {"type":"function","name":"getUserPEXOAllocation","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"deposit","stateMutability":"payable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const multicall3ABIJSON = `[
 {"type":"function","name":"aggregate3","stateMutability":"payable","inputs":[{"name":"calls","type":"tuple[]","components":[{"name":"target","type":"address"},{"name":"allowFailure","type":"bool"},{"name":"callData","type":"bytes"}]}],"outputs":[{"name":"returnData","type":"tuple[]","components":[{"name":"success","type":"bool"},{"name":"returnData","type":"bytes"}]}]},
 {"type":"function","name":"getEthBalance","stateMutability":"view","inputs":[{"name":"addr","type":"address"}],"outputs":[{"name":"balance","type":"uint256"}]}
]`

const erc20ABIJSON = `[
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

// Parsed interfaces, built once at package init.
var (
	TokenManagerABI = mustParseABI(tokenManagerABIJSON)
	RouterABI       = mustParseABI(routerABIJSON)
	StakingABI      = mustParseABI(stakingABIJSON)
	Multicall3ABI   = mustParseABI(multicall3ABIJSON)
	ERC20ABI        = mustParseABI(erc20ABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
