package model

// PairConfig describes one index/ETF comparison to track and chart.
type PairConfig struct {
	Title       string `yaml:"title" json:"title"`
	IndexSymbol string `yaml:"index_symbol" json:"index_symbol"`
	IndexFile   string `yaml:"index_file" json:"index_file"`
	ETFSymbol   string `yaml:"etf_symbol" json:"etf_symbol"`
	ETFFile     string `yaml:"etf_file" json:"etf_file"`
}
