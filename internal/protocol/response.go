package protocol

// ResponseCode код результата запроса клиента
type ResponseCode uint8

const (
	Success                 ResponseCode = 0
	Error                   ResponseCode = 1
	InvalidRequest          ResponseCode = 2
	NotAuthenticated        ResponseCode = 3
	AlreadyExists           ResponseCode = 4
	NotFound                ResponseCode = 5
	InsufficientPermissions ResponseCode = 6
	InvalidData             ResponseCode = 7
	ServerError             ResponseCode = 8
	Timeout                 ResponseCode = 9

	// Создание персонажа
	NameTaken                   ResponseCode = 10
	InvalidName                 ResponseCode = 11
	InvalidRaceClassCombination ResponseCode = 12
	MaxCharactersReached        ResponseCode = 13

	// Бой
	NotInRange    ResponseCode = 20
	NotEnoughMana ResponseCode = 21
	OnCooldown    ResponseCode = 22
	Interrupted   ResponseCode = 23
	InvalidTarget ResponseCode = 24

	// Нарушение правил мира (раса/фракция/тотем)
	LoreInconsistency ResponseCode = 100
)

var responseNames = map[ResponseCode]string{
	Success:                     "Success",
	Error:                       "Error",
	InvalidRequest:              "InvalidRequest",
	NotAuthenticated:            "NotAuthenticated",
	AlreadyExists:               "AlreadyExists",
	NotFound:                    "NotFound",
	InsufficientPermissions:     "InsufficientPermissions",
	InvalidData:                 "InvalidData",
	ServerError:                 "ServerError",
	Timeout:                     "Timeout",
	NameTaken:                   "NameTaken",
	InvalidName:                 "InvalidName",
	InvalidRaceClassCombination: "InvalidRaceClassCombination",
	MaxCharactersReached:        "MaxCharactersReached",
	NotInRange:                  "NotInRange",
	NotEnoughMana:               "NotEnoughMana",
	OnCooldown:                  "OnCooldown",
	Interrupted:                 "Interrupted",
	InvalidTarget:               "InvalidTarget",
	LoreInconsistency:           "LoreInconsistency",
}

func (c ResponseCode) String() string {
	if name, ok := responseNames[c]; ok {
		return name
	}
	return "Unknown"
}
