// Package recovery возвращает в обработку schedules, брошенные
// упавшими worker'ами.
//
// Orphan — это ACTIVE schedule с next_fire_at в прошлом, чей lease
// был выдан и истёк: владелец умер, не зафиксировав исход цикла.
// Due schedule без владельца сиротой не является — это обычный
// кандидат scheduling loop'а, sweep его не трогает.
// Recovery manager прогоняет sweep на старте процесса и периодически,
// применяя детерминированную политику: FIRE_IMMEDIATELY возвращает
// пропущенное срабатывание в общий пул due, SKIP_TO_NEXT переводит
// next_fire_at на первое будущее срабатывание.
//
// Recovery сам ничего не доставляет — только переклассифицирует и
// снимает устаревшее владение; срабатывание идёт обычным путём через
// scheduling loop и dispatcher. Все записи условные, поэтому гонка
// с другим worker'ом (или вторым recovery) безопасна: проигравший
// просто пропускает кандидата.
package recovery
