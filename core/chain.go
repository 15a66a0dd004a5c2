package core

// Chain identifies the external network a RepBlock's chain tag binds an
// account identity to. Grounded on
// original_source/rai/common/chain.hpp rai::Chain.
type Chain uint32

const (
	ChainInvalid Chain = 0
	ChainRaicoin Chain = 1
	ChainBitcoin Chain = 2
	ChainEthereum Chain = 3
	ChainBinanceSmartChain Chain = 4

	ChainRaicoinTest            Chain = 10010
	ChainBitcoinTest            Chain = 10020
	ChainEthereumTestRopsten    Chain = 10030
	ChainEthereumTestKovan      Chain = 10031
	ChainEthereumTestRinkeby    Chain = 10032
	ChainEthereumTestGoerli     Chain = 10033
	ChainEthereumTestSepolia    Chain = 10034
	ChainBinanceSmartChainTest  Chain = 10040
)

func (c Chain) String() string {
	switch c {
	case ChainRaicoin:
		return "raicoin"
	case ChainBitcoin:
		return "bitcoin"
	case ChainEthereum:
		return "ethereum"
	case ChainBinanceSmartChain:
		return "binance smart chain"
	case ChainRaicoinTest:
		return "raicoin testnet"
	case ChainBitcoinTest:
		return "bitcoin testnet"
	case ChainEthereumTestRopsten:
		return "ethereum ropsten testnet"
	case ChainEthereumTestKovan:
		return "ethereum kovan testnet"
	case ChainEthereumTestRinkeby:
		return "ethereum rinkeby testnet"
	case ChainEthereumTestGoerli:
		return "ethereum goerli testnet"
	case ChainEthereumTestSepolia:
		return "ethereum sepolia testnet"
	case ChainBinanceSmartChainTest:
		return "binance smart chain testnet"
	default:
		return "invalid"
	}
}

// knownChains is the table a bind block's chain tag is checked against;
// any value outside this set is rejected rather than silently accepted,
// per original_source/rai/common/chain.hpp's closed Chain enum.
var knownChains = map[Chain]bool{
	ChainRaicoin: true, ChainBitcoin: true, ChainEthereum: true, ChainBinanceSmartChain: true,
	ChainRaicoinTest: true, ChainBitcoinTest: true,
	ChainEthereumTestRopsten: true, ChainEthereumTestKovan: true, ChainEthereumTestRinkeby: true,
	ChainEthereumTestGoerli: true, ChainEthereumTestSepolia: true, ChainBinanceSmartChainTest: true,
}

// IsKnownChain reports whether chain is a tag the node recognizes.
func IsKnownChain(chain uint32) bool {
	return knownChains[Chain(chain)]
}

// IsRaicoin reports whether chain identifies this network itself (live or
// test), mirroring original_source/rai/common/chain.hpp IsRaicoin.
func IsRaicoin(chain uint32) bool {
	return Chain(chain) == ChainRaicoin || Chain(chain) == ChainRaicoinTest
}
