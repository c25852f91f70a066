package records

// Sheets names the tabs of the tabular store.
type Sheets struct {
	Stock     string
	Sales     string
	Purchases string
	Logs      string
}

// Column layout of the stock sheet (1-based; row 1 is the header).
const (
	colStockSKU = iota + 1
	colStockTitle
	colStockBrand
	colStockSize
	colStockCondition
	colStockCategory
	colStockPlatform
	colStockPhotos
	colStockFavorites
	colStockOffers
	colStockCreated

	stockColumns = colStockCreated
)

// Column layout of the sales sheet.
const (
	colSaleDate = iota + 1
	colSalePlatform
	colSaleTitle
	colSaleSKU
	colSalePrice
	colSaleFee

	saleColumns = colSaleFee
)

// Column layout of the purchases sheet.
const (
	colPurchaseDate = iota + 1
	colPurchaseSupplier
	colPurchaseBrand
	colPurchaseSize
	colPurchasePrice

	purchaseColumns = colPurchasePrice
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
	photoSeparator  = "; "
)

func StockHeader() []string {
	return []string{
		"SKU", "Title", "Brand", "Size", "Condition", "Category",
		"Platform", "Photos", "Favorites", "Offers", "Created",
	}
}

func SalesHeader() []string {
	return []string{"Date", "Platform", "Title", "SKU", "Price", "Fee"}
}

func PurchasesHeader() []string {
	return []string{"Date", "Supplier", "Brand", "Size", "Price"}
}

func LogsHeader() []string {
	return []string{"Time", "Level", "Source", "Message", "Detail"}
}
