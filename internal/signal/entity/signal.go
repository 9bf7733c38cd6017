package entity

// Направление позиции
const (
	DirectionLong  = "Long"
	DirectionShort = "Short"
)

// Тип выхода из позиции
const (
	ExitAll        = "all"
	ExitPercentage = "percentage"
)

// Signal — размеченное объединение разобранных сигналов.
// Ровно три варианта: Noise, Entry, Exit.
type Signal interface {
	isSignal()
}

// Noise — сообщение без торгового содержания (в том числе неразобранное)
type Noise struct{}

func (Noise) isSignal() {}

// Entry — сигнал входа в позицию с плечом и уровнями TP/SL
type Entry struct {
	Asset     string
	Direction string
	Leverage  float64
	TP        float64
	SL        float64
}

func (Entry) isSignal() {}

// Exit — сигнал закрытия позиции целиком или частично.
// Percentage задан только при ExitType == ExitPercentage и лежит в (0, 100].
type Exit struct {
	Asset      string
	ExitType   string
	Percentage float64
}

func (Exit) isSignal() {}
