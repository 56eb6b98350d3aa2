package validate

// Names of the list fields in mirror REST list responses.
const (
	AccountListName     = "accounts"
	AllowanceListName   = "allowances"
	BalanceListName     = "balances"
	BlockListName       = "blocks"
	ContractListName    = "contracts"
	LogListName         = "logs"
	MessageListName     = "messages"
	NetworkNodeListName = "nodes"
	NftListName         = "nfts"
	ResultListName      = "results"
	RewardListName      = "rewards"
	ScheduleListName    = "schedules"
	StateListName       = "state"
	TokenListName       = "tokens"
	TransactionListName = "transactions"
)
