package state

var (
	accountPrefix = []byte("orderbook/account/")
	orderPrefix   = []byte("orderbook/order/")
	assetPrefix   = []byte("orderbook/asset/")
	assetIndexKey = []byte("orderbook/asset-index")
)

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return buf
}

func orderKey(addr [20]byte) []byte {
	buf := make([]byte, len(orderPrefix)+len(addr))
	copy(buf, orderPrefix)
	copy(buf[len(orderPrefix):], addr[:])
	return buf
}

func assetKey(symbol string) []byte {
	buf := make([]byte, len(assetPrefix)+len(symbol))
	copy(buf, assetPrefix)
	copy(buf[len(assetPrefix):], symbol)
	return buf
}
