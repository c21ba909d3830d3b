package observable

type Iterable <-chan interface{}
