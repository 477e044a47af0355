package oracle

// Well-known Solana mints and their CoinGecko ids.
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintBONK = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	MintGMT  = "7i5KKsX2weiTkry7jA4ZwSuXGhs5eJBEjY8vVxR4pfRx"
)

var coinGeckoIDs = map[string]string{
	MintSOL:  "solana",
	MintUSDC: "usd-coin",
	MintBONK: "bonk",
	MintGMT:  "stepn",
	"SOL":    "solana",
	"USDC":   "usd-coin",
	"BONK":   "bonk",
	"GMT":    "stepn",
}
